package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"VISION_TIMEOUT_SECONDS", "STRICT_INVARIANTS", "NATS_SUBJECT",
		"API_RATE_LIMIT_RPS", "API_MAX_UPLOAD_MB", "WORKER_PROCESS_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.VisionTimeout() != 30*time.Second {
		t.Fatalf("expected default vision timeout 30s, got %s", cfg.VisionTimeout())
	}
	if cfg.StrictInvariants {
		t.Fatalf("expected strict invariants off by default")
	}
	if cfg.NATSSubject != "documents.ingest" {
		t.Fatalf("expected default subject documents.ingest, got %q", cfg.NATSSubject)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rate limit 20, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIMaxUploadBytes != 25<<20 {
		t.Fatalf("expected default upload limit 25MB, got %d", cfg.APIMaxUploadBytes)
	}
	if cfg.WorkerProcessTimeout() != 5*time.Minute {
		t.Fatalf("expected default process timeout 5m, got %s", cfg.WorkerProcessTimeout())
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VISION_TIMEOUT_SECONDS", "5")
	t.Setenv("STRICT_INVARIANTS", "true")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("VISION_BREAKER_FAILURE_RATIO", "0.25")

	cfg := Load()
	if cfg.VisionTimeout() != 5*time.Second {
		t.Fatalf("expected vision timeout 5s, got %s", cfg.VisionTimeout())
	}
	if !cfg.StrictInvariants {
		t.Fatalf("expected strict invariants on")
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.VisionBreakerFailureRatio != 0.25 {
		t.Fatalf("expected failure ratio 0.25, got %v", cfg.VisionBreakerFailureRatio)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("VISION_TIMEOUT_SECONDS", "soon")
	t.Setenv("API_RATE_LIMIT_RPS", "fast")
	t.Setenv("STRICT_INVARIANTS", "maybe")

	cfg := Load()
	if cfg.VisionTimeoutSeconds != 30 || cfg.APIRateLimitRPS != 20 || cfg.StrictInvariants {
		t.Fatalf("malformed values must fall back to defaults: %+v", cfg)
	}
}
