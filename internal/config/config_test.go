package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"QUOTA_GUEST_MAX", "QUOTA_FREE_MAX", "STORAGE_BACKEND", "GOOGLE_API_KEY", "GEMINI_API_KEY",
		"CORS_ALLOWED_ORIGINS", "API_RATE_LIMIT_RPS", "MODEL_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.QuotaGuestMax != 5 || cfg.QuotaFreeMax != 10 {
		t.Fatalf("expected default caps 5/10, got %d/%d", cfg.QuotaGuestMax, cfg.QuotaFreeMax)
	}
	if cfg.StorageBackend != "local" {
		t.Fatalf("expected local storage backend, got %q", cfg.StorageBackend)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rps 20, got %v", cfg.APIRateLimitRPS)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if limits := cfg.AnalyzeLimits(); limits.ModelTimeout != 60*time.Second || limits.LockTTL != 90*time.Second {
		t.Fatalf("unexpected limits %+v", limits)
	}
}

func TestLoadGeminiKeyFallsBackToGeminiVariable(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	if got := Load().GeminiAPIKey; got != "gem-key" {
		t.Fatalf("expected GEMINI_API_KEY fallback, got %q", got)
	}

	t.Setenv("GOOGLE_API_KEY", "google-key")
	if got := Load().GeminiAPIKey; got != "google-key" {
		t.Fatalf("expected GOOGLE_API_KEY to win, got %q", got)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("LLM_BREAKER_ENABLED", "false")
	t.Setenv("QUOTA_FREE_MAX", "not-a-number")
	t.Setenv("API_TRUSTED_PROXIES", "10.0.0.0/8,172.16.0.5")

	cfg := Load()
	if cfg.StorageBackend != "s3" {
		t.Fatalf("expected lowercased backend, got %q", cfg.StorageBackend)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.LLMBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.QuotaFreeMax != 10 {
		t.Fatalf("expected invalid int to fall back to 10, got %d", cfg.QuotaFreeMax)
	}
	if len(cfg.APITrustedProxies) != 2 || cfg.APITrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies %v", cfg.APITrustedProxies)
	}
}

func TestQuotaPolicyFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.yaml")
	if err := os.WriteFile(path, []byte("guest_max: 3\nfree_max: -1\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	cfg := Config{QuotaGuestMax: 5, QuotaFreeMax: 25, QuotaPolicyFile: path}
	policy, err := cfg.QuotaPolicy()
	if err != nil {
		t.Fatalf("QuotaPolicy() error = %v", err)
	}
	if policy.GuestMax != 3 {
		t.Fatalf("expected guest cap from file, got %d", policy.GuestMax)
	}
	if policy.FreeMax != 10 {
		t.Fatalf("expected invalid free cap to fall back to default, got %d", policy.FreeMax)
	}
}

func TestQuotaPolicyFileErrors(t *testing.T) {
	cfg := Config{QuotaPolicyFile: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := cfg.QuotaPolicy(); err == nil {
		t.Fatalf("expected missing file error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("guest_max: [1"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	cfg.QuotaPolicyFile = path
	if _, err := cfg.QuotaPolicy(); err == nil {
		t.Fatalf("expected parse error")
	}
}
