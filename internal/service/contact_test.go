package service

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/petlink/petlink/internal/model"
)

func viewWithPhone(phone string) *model.ResolvedView {
	return &model.ResolvedView{
		Pet:   model.Pet{Code: "PET123456", Name: "Rex"},
		Owner: model.Contact{Name: "Ana", Phone: phone},
	}
}

func TestBuildContactLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		phone       string
		countryCode string
		wantPrefix  string
	}{
		{"formatted local number", "(11) 98888-7777", "55", "https://wa.me/5511988887777?text="},
		{"default country code", "11988887777", "", "https://wa.me/5511988887777?text="},
		{"country code with plus", "11988887777", "+55", "https://wa.me/5511988887777?text="},
		{"other country", "555 0100", "1", "https://wa.me/15550100?text="},
		{"international number", "+351 912 345 678", "55", "https://wa.me/351912345678?text="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			link, err := BuildContactLink(viewWithPhone(tt.phone), tt.countryCode)
			if err != nil {
				t.Fatalf("BuildContactLink failed: %v", err)
			}
			if !strings.HasPrefix(link, tt.wantPrefix) {
				t.Errorf("link = %s, want prefix %s", link, tt.wantPrefix)
			}
		})
	}
}

func TestBuildContactLink_MessageEncoding(t *testing.T) {
	t.Parallel()

	link, err := BuildContactLink(viewWithPhone("11988887777"), "55")
	if err != nil {
		t.Fatalf("BuildContactLink failed: %v", err)
	}

	_, query, ok := strings.Cut(link, "?text=")
	if !ok {
		t.Fatalf("link has no text parameter: %s", link)
	}
	if strings.Contains(query, "+") || strings.Contains(query, " ") {
		t.Errorf("spaces must be encoded as %%20, got %s", query)
	}

	decoded, err := url.PathUnescape(query)
	if err != nil {
		t.Fatalf("decode text: %v", err)
	}
	want := "Olá! Encontrei seu pet Rex com o código PET123456"
	if decoded != want {
		t.Errorf("text = %q, want %q", decoded, want)
	}
}

func TestBuildContactLink_NoPhone(t *testing.T) {
	t.Parallel()

	for _, phone := range []string{"", "   ", "n/a", "+"} {
		view := viewWithPhone(phone)
		view.Owner.Email = "ana@example.com"

		if _, err := BuildContactLink(view, "55"); !errors.Is(err, ErrNoContactAvailable) {
			t.Errorf("phone %q: expected ErrNoContactAvailable, got %v", phone, err)
		}
	}

	if _, err := BuildContactLink(nil, "55"); !errors.Is(err, ErrNoContactAvailable) {
		t.Errorf("nil view: expected ErrNoContactAvailable, got %v", err)
	}
}

func TestContactCache(t *testing.T) {
	t.Parallel()

	c := NewContactCache(2, time.Minute)
	c.Set("a", model.Contact{Name: "A"})
	c.Set("b", model.Contact{Name: "B"})
	c.Set("c", model.Contact{Name: "C"})

	if _, ok := c.Get("a"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if got, ok := c.Get("c"); !ok || got.Name != "C" {
		t.Errorf("Get(c) = %+v, %v", got, ok)
	}

	c.Invalidate("c")
	if _, ok := c.Get("c"); ok {
		t.Error("invalidated entry should be gone")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestContactCache_Disabled(t *testing.T) {
	t.Parallel()

	c := NewContactCache(0, time.Minute)
	if c != nil {
		t.Fatal("size 0 should disable the cache")
	}

	c.Set("a", model.Contact{Name: "A"})
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache must always miss")
	}
	c.Invalidate("a")
	if c.Len() != 0 {
		t.Error("disabled cache must be empty")
	}
}
