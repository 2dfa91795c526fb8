package config

import (
	"os"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.HTTP.Port = 8080
	cfg.Engine.Addrs = []string{"localhost:6379"}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Search.DefaultRows != 20 {
		t.Errorf("default rows = %d, want 20", cfg.Search.DefaultRows)
	}
	if cfg.Search.MaxRows != 1000 {
		t.Errorf("max rows = %d, want 1000", cfg.Search.MaxRows)
	}
	if cfg.Tiles.DampenThresholdYears != 2500 {
		t.Errorf("dampen threshold = %g, want 2500", cfg.Tiles.DampenThresholdYears)
	}
	if cfg.Tiles.ChronoRootEarliest >= cfg.Tiles.ChronoRootLatest {
		t.Error("default chronology root span is inverted")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config should validate: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"no engine addrs", func(c *Config) { c.Engine.Addrs = nil }, "engine.addrs"},
		{"inverted geo depths", func(c *Config) { c.Tiles.GeoMinDepth = 21 }, "geo_min_depth"},
		{"inverted chrono root", func(c *Config) {
			c.Tiles.ChronoRootEarliest = 2100
			c.Tiles.ChronoRootLatest = -10000
		}, "chrono_root"},
		{"rows over max", func(c *Config) { c.Search.DefaultRows = 2000 }, "default_rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("STRATA_TEST_DSN", "postgres://u:p@localhost/strata")
	defer os.Unsetenv("STRATA_TEST_DSN")

	got := string(expandEnvVars([]byte("dsn: ${STRATA_TEST_DSN}")))
	if got != "dsn: postgres://u:p@localhost/strata" {
		t.Errorf("expandEnvVars = %q", got)
	}

	got = string(expandEnvVars([]byte("index: ${STRATA_MISSING:-strata:idx}")))
	if got != "index: strata:idx" {
		t.Errorf("default expansion = %q", got)
	}
}
