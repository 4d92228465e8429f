package config

import (
	"testing"
	"time"

	"github.com/rasike-dev/chronosops/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxIterations != 5 {
		t.Fatalf("expected default max iterations 5, got %d", cfg.MaxIterations)
	}
	if cfg.ConfidenceTarget != 0.8 {
		t.Fatalf("expected default confidence target 0.8, got %v", cfg.ConfidenceTarget)
	}
	if !cfg.SafeMode {
		t.Fatal("safe mode must default to on")
	}
	if cfg.ReasonTimeout != 60*time.Second {
		t.Fatalf("expected default reason timeout 60s, got %v", cfg.ReasonTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHRONOSOPS_MAX_ITERATIONS", "3")
	t.Setenv("CHRONOSOPS_CONFIDENCE_TARGET", "0.9")
	t.Setenv("CHRONOSOPS_SAFE_MODE", "false")
	t.Setenv("CHRONOSOPS_REAL_KINDS", "metrics, logs")
	t.Setenv("CHRONOSOPS_COLLECTOR_BACKENDS", "METRICS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxIterations != 3 {
		t.Fatalf("expected 3, got %d", cfg.MaxIterations)
	}
	if cfg.ConfidenceTarget != 0.9 {
		t.Fatalf("expected 0.9, got %v", cfg.ConfidenceTarget)
	}
	if cfg.SafeMode {
		t.Fatal("expected safe mode off")
	}
	if len(cfg.RealKinds) != 2 || !cfg.RealKinds[model.KindMetrics] || !cfg.RealKinds[model.KindLogs] {
		t.Fatalf("unexpected real kinds: %v", cfg.RealKinds)
	}
	if !cfg.CollectorBackends[model.KindMetrics] {
		t.Fatalf("expected METRICS backend configured: %v", cfg.CollectorBackends)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHRONOSOPS_CONFIDENCE_TARGET", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for confidence target above 1")
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	t.Setenv("CHRONOSOPS_REAL_KINDS", "METRICS,SCREENSHOTS")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown evidence kind")
	}
}

func TestEnvIntFallbackOnInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	if v := envDuration("TEST_DURATION", time.Minute); v != 90*time.Second {
		t.Fatalf("expected 90s, got %v", v)
	}
	if v := envDuration("TEST_DURATION_MISSING", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m, got %v", v)
	}
}
