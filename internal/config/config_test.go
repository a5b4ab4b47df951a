package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadConfigCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := ReadConfigFrom(path); err == nil {
		t.Fatal("expected error for missing configuration file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default configuration to be written, got %v", err)
	}

	// the generated file must be loadable as is
	c, err := ReadConfigFrom(path)
	if err != nil {
		t.Fatalf("reading generated configuration: %v", err)
	}
	if c.Live.RefreshPeriod != "10s" {
		t.Errorf("expected default refresh period 10s, got %q", c.Live.RefreshPeriod)
	}
}

func TestReadConfigFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"live": {"refresh_period": "30s"}, "auth": {"jwt_secret": "s"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := ReadConfigFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Live.RefreshPeriod != "30s" {
		t.Errorf("expected refresh period 30s, got %q", c.Live.RefreshPeriod)
	}
	if c.Live.SocketPath != "/api/socket" {
		t.Errorf("expected default socket path, got %q", c.Live.SocketPath)
	}
	if c.Database.Port != 27017 {
		t.Errorf("expected default database port, got %d", c.Database.Port)
	}
	got, _ := GetConfig()
	if got.Auth.JWTSecret != "s" {
		t.Errorf("GetConfig did not return the loaded configuration")
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"refresh", func(c *Config) { c.Live.RefreshPeriod = "0s" }},
		{"write", func(c *Config) { c.Live.WriteTimeout = "soon" }},
		{"ttl", func(c *Config) { c.Cache.VisibilityTTL = "-1m" }},
	}

	for _, tt := range tests {
		c := Default()
		tt.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestReadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadConfigFrom(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
