package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
mode: DRY_RUN
chain: BSC
watchlist:
  - "0xabc"
providers:
  - id: fast
    kind: LOCAL_FAST
    max_latency_budget: 50ms
    priority: 1
    enabled: true
  - id: gpt
    kind: REMOTE
    backend: OPENAI
    max_latency_budget: 6s
    priority: 2
    enabled: true
    rps: 2
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	if cfg.PollSeconds != 15 {
		t.Errorf("Expected default poll_seconds 15, got %d", cfg.PollSeconds)
	}
	if cfg.DecideBudget != 5*time.Second {
		t.Errorf("Expected default decide_budget 5s, got %v", cfg.DecideBudget)
	}
	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("Expected default failure_threshold 3, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Cache.TTLHigh != 20*time.Second {
		t.Errorf("Expected default ttl_high 20s, got %v", cfg.Cache.TTLHigh)
	}
	if cfg.Gate.AdmitScore != 80 || cfg.Gate.ReviewScore != 50 {
		t.Errorf("Expected default gate bands 80/50, got %d/%d", cfg.Gate.AdmitScore, cfg.Gate.ReviewScore)
	}
	if cfg.Gate.HighVolSlippageMult != 2.0 || cfg.Gate.HighVolTimeoutMult != 0.5 {
		t.Errorf("Expected default volatility multipliers 2.0/0.5, got %v/%v",
			cfg.Gate.HighVolSlippageMult, cfg.Gate.HighVolTimeoutMult)
	}
	// A provider with rps set gets a minimum burst.
	if cfg.Providers[1].Burst != 1 {
		t.Errorf("Expected default burst 1 for rate-limited provider, got %d", cfg.Providers[1].Burst)
	}
}

func TestLoadConfigParsesProviders(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("Expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Kind != "LOCAL_FAST" {
		t.Errorf("Expected first provider LOCAL_FAST, got %s", cfg.Providers[0].Kind)
	}
	if cfg.Providers[1].MaxLatencyBudget != 6*time.Second {
		t.Errorf("Expected 6s latency budget, got %v", cfg.Providers[1].MaxLatencyBudget)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "DRY_RUN", "YOLO", 1)
	if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
		t.Error("Expected invalid mode to fail validation")
	}
}

func TestValidateRejectsEmptyProviders(t *testing.T) {
	yaml := `
mode: DRY_RUN
watchlist: ["0xabc"]
providers: []
`
	if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
		t.Error("Expected empty providers to fail validation")
	}
}

func TestValidateRejectsDuplicateProviderIDs(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "id: gpt", "id: fast", 1)
	if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
		t.Error("Expected duplicate provider ids to fail validation")
	}
}

func TestValidateRejectsBadKind(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "kind: REMOTE", "kind: MAGIC", 1)
	if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
		t.Error("Expected unknown provider kind to fail validation")
	}
}

func TestValidateRejectsInvertedGateBands(t *testing.T) {
	yaml := minimalYAML + `
gate:
  admit_score: 40
  review_score: 60
`
	if _, err := LoadConfig(writeConfig(t, yaml)); err == nil {
		t.Error("Expected review_score above admit_score to fail validation")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected missing file to error")
	}
}
