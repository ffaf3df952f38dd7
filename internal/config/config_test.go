package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadClampsBadNumericValues(t *testing.T) {
	t.Setenv("SUMMARY_TTL_SECONDS", "not-a-number")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "0")

	cfg := Load()
	if cfg.SummaryTTLSeconds != 15 {
		t.Fatalf("summary ttl = %d, want fallback 15", cfg.SummaryTTLSeconds)
	}
	if cfg.SettleMaxAttempts != 3 {
		t.Fatalf("settle attempts = %d, want fallback 3", cfg.SettleMaxAttempts)
	}
}
