package config

import "testing"

type testEnvConfig struct {
	Addr  string `env:"ARENA_TEST_ADDR"`
	Count int    `env:"ARENA_TEST_COUNT" envDefault:"3"`
}

func TestParseEnvReadsValues(t *testing.T) {
	t.Setenv("ARENA_TEST_ADDR", "localhost:9999")
	t.Setenv("ARENA_TEST_COUNT", "7")

	var cfg testEnvConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9999" {
		t.Fatalf("expected addr localhost:9999, got %q", cfg.Addr)
	}
	if cfg.Count != 7 {
		t.Fatalf("expected count 7, got %d", cfg.Count)
	}
}

func TestParseEnvAppliesDefaults(t *testing.T) {
	var cfg testEnvConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Count != 3 {
		t.Fatalf("expected default count 3, got %d", cfg.Count)
	}
}

func TestParseEnvRejectsMalformedValue(t *testing.T) {
	t.Setenv("ARENA_TEST_COUNT", "not-a-number")

	var cfg testEnvConfig
	if err := ParseEnv(&cfg); err == nil {
		t.Fatal("expected error for malformed int value")
	}
}
