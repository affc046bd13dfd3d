package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/testutil"
)

type fakeLimiter struct {
	result *cache.RateLimitResult
	err    error
	ips    []string
}

func (f *fakeLimiter) CheckIPRateLimit(ctx context.Context, ip string, rps, burst int) (*cache.RateLimitResult, error) {
	f.ips = append(f.ips, ip)
	return f.result, f.err
}

func (f *fakeLimiter) CheckLoginRateLimit(ctx context.Context, ip string, perMinute, burst int) (*cache.RateLimitResult, error) {
	f.ips = append(f.ips, ip)
	return f.result, f.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitIP(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		limiter    *fakeLimiter
		wantStatus int
	}{
		{
			name:       "allowed",
			enabled:    true,
			limiter:    &fakeLimiter{result: &cache.RateLimitResult{Allowed: true, Remaining: 4}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejected",
			enabled:    true,
			limiter:    &fakeLimiter{result: &cache.RateLimitResult{RetryAfter: 1500 * time.Millisecond}},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "limiter failure fails open",
			enabled:    true,
			limiter:    &fakeLimiter{err: errors.New("redis down")},
			wantStatus: http.StatusOK,
		},
		{
			name:       "disabled",
			enabled:    false,
			limiter:    &fakeLimiter{result: &cache.RateLimitResult{}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimitIP(RateLimitConfig{
				Logger:        discardLogger(),
				Limiter:       tt.limiter,
				LookupEnabled: tt.enabled,
				LookupRPS:     5,
				LookupBurst:   10,
			})(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/encontrar-pet?codigo=PETAAAAAA", nil)
			req.RemoteAddr = "198.51.100.4:4242"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.enabled && (len(tt.limiter.ips) != 1 || tt.limiter.ips[0] != "198.51.100.4") {
				t.Errorf("limited ips = %v, want [198.51.100.4]", tt.limiter.ips)
			}
			if tt.wantStatus == http.StatusTooManyRequests {
				if got := rec.Header().Get("Retry-After"); got != "1" {
					t.Errorf("Retry-After = %q, want 1", got)
				}
				var body struct {
					Error string `json:"error"`
					Code  string `json:"code"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.Code != "RATE_LIMITED" {
					t.Errorf("code = %q, want RATE_LIMITED", body.Code)
				}
			}
		})
	}
}

func TestRateLimitLogin_SetsHeaders(t *testing.T) {
	reset := time.Unix(1_700_000_000, 0)
	limiter := &fakeLimiter{result: &cache.RateLimitResult{Allowed: true, Remaining: 3, ResetAt: reset}}

	handler := RateLimitLogin(RateLimitConfig{
		Logger:         discardLogger(),
		Limiter:        limiter,
		LoginPerMinute: 5,
		LoginBurst:     5,
	})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "3" {
		t.Errorf("X-RateLimit-Remaining = %q, want 3", got)
	}
	if got := rec.Header().Get("X-RateLimit-Reset"); got != "1700000000" {
		t.Errorf("X-RateLimit-Reset = %q, want 1700000000", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

// TestRateLimitLogin_Redis drives the real token bucket until it rejects.
func TestRateLimitLogin_Redis(t *testing.T) {
	rdb := testutil.NewTestRedis(t)
	c := cache.NewFromClient(rdb)

	handler := RateLimitLogin(RateLimitConfig{
		Logger:         discardLogger(),
		Limiter:        c,
		LoginPerMinute: 1,
		LoginBurst:     2,
	})(okHandler())

	ip := "203.0.113.77"
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two attempts = %v, want 200s within burst", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third attempt = %d, want 429", statuses[2])
	}
}
