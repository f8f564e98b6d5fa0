package config

import (
	"testing"
	"time"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coinpulse")
	t.Setenv("COINPULSE_ADMIN_TOKEN", "tok")
	t.Setenv("PORT", "")
	t.Setenv("COINPULSE_API_ADDR", "")
	t.Setenv("COINPULSE_MAX_SHARES_PER_TX", "")
	t.Setenv("COINPULSE_SAMPLE_EVERY", "")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.PerTransactionCap != 50 {
		t.Fatalf("cap = %d, want 50", cfg.PerTransactionCap)
	}
	if cfg.SampleEvery != time.Minute {
		t.Fatalf("sample every = %v, want 1m", cfg.SampleEvery)
	}
}

func TestLoadAPIFromEnvPortNormalization(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coinpulse")
	t.Setenv("COINPULSE_ADMIN_TOKEN", "tok")
	t.Setenv("PORT", "9000")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q, want :9000", cfg.Addr)
	}
}

func TestLoadAPIFromEnvRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("COINPULSE_ADMIN_TOKEN", "tok")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is unset")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/coinpulse")
	t.Setenv("COINPULSE_ADMIN_TOKEN", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error when COINPULSE_ADMIN_TOKEN is unset")
	}
}

func TestLoadAPIFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coinpulse")
	t.Setenv("COINPULSE_ADMIN_TOKEN", "tok")
	t.Setenv("PORT", "")
	t.Setenv("COINPULSE_API_ADDR", ":3000")
	t.Setenv("COINPULSE_MAX_SHARES_PER_TX", "100")
	t.Setenv("COINPULSE_SAMPLE_EVERY", "30s")
	t.Setenv("NATION_API_URL", "https://api.example.test/")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Fatalf("addr = %q, want :3000", cfg.Addr)
	}
	if cfg.PerTransactionCap != 100 {
		t.Fatalf("cap = %d, want 100", cfg.PerTransactionCap)
	}
	if cfg.SampleEvery != 30*time.Second {
		t.Fatalf("sample every = %v, want 30s", cfg.SampleEvery)
	}
	if cfg.NationAPIBaseURL != "https://api.example.test" {
		t.Fatalf("nation url = %q, want trailing slash trimmed", cfg.NationAPIBaseURL)
	}
}

func TestEnvInt64DefaultRejectsBadValues(t *testing.T) {
	t.Setenv("COINPULSE_MAX_SHARES_PER_TX", "not-a-number")
	if got := envInt64Default("COINPULSE_MAX_SHARES_PER_TX", 50); got != 50 {
		t.Fatalf("got %d, want fallback 50", got)
	}
	t.Setenv("COINPULSE_MAX_SHARES_PER_TX", "-3")
	if got := envInt64Default("COINPULSE_MAX_SHARES_PER_TX", 50); got != 50 {
		t.Fatalf("got %d, want fallback 50 for non-positive", got)
	}
}
