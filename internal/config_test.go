package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("err = %v, want token is empty", err)
	}

	if err := (&AuthConfig{Mode: "magic", Token: "x"}).Validate(); err == nil {
		t.Error("invalid mode should fail validation")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.API.Enabled() {
		t.Error("default config should run offline")
	}
	if got, want := cfg.App.HTTP.Address(), "127.0.0.1:8080"; got != want {
		t.Errorf("address = %q, want %q", got, want)
	}
	if got, want := cfg.SQLite.Resolve("/tmp/lifeos"), filepath.Join("/tmp/lifeos", "index.db"); got != want {
		t.Errorf("index path = %q, want %q", got, want)
	}
}

func TestAPIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*APIConfig)
		wantErr bool
	}{
		{"backend url", func(c *APIConfig) { c.BaseURL = "https://api.lifeos.app" }, false},
		{"bad url", func(c *APIConfig) { c.BaseURL = "not a url" }, true},
		{"timezone", func(c *APIConfig) { c.Timezone = "Europe/Berlin" }, false},
		{"bad timezone", func(c *APIConfig) { c.Timezone = "Mars/Olympus" }, true},
		{"short session check", func(c *APIConfig) { c.SessionCheckTimeout = 10 * time.Millisecond }, true},
		{"rate limit without burst", func(c *APIConfig) { c.RateLimit, c.RateBurst = 5, 0 }, true},
		{"rate limit", func(c *APIConfig) { c.RateLimit, c.RateBurst = 5, 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().API
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Data.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch data error")
	}
}
