package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestValidateOptions(t *testing.T) {
	base := options{databaseURL: "postgres://localhost/petlink", email: "admin@petlink.example", format: "plain"}

	tests := []struct {
		name    string
		mutate  func(o *options)
		wantErr bool
	}{
		{"valid", func(o *options) {}, false},
		{"json format", func(o *options) { o.format = "JSON" }, false},
		{"missing database", func(o *options) { o.databaseURL = "" }, true},
		{"missing email", func(o *options) { o.email = "  " }, true},
		{"bad format", func(o *options) { o.format = "yaml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			err := validateOptions(o)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	out := &output{AccountID: "01HZXJ4V6Q", Email: "admin@petlink.example", Role: "admin", Created: true}

	var plain bytes.Buffer
	if err := writeOutput(&plain, "plain", out); err != nil {
		t.Fatalf("plain: %v", err)
	}
	if plain.String() != "01HZXJ4V6Q\n" {
		t.Errorf("plain output = %q", plain.String())
	}

	var js bytes.Buffer
	if err := writeOutput(&js, "json", out); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded output
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != *out {
		t.Errorf("json output = %+v, want %+v", decoded, *out)
	}
}
