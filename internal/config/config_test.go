package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Pipeline.TotalBudgetMS != 15000 {
		t.Fatalf("expected default total budget 15000, got %d", cfg.Pipeline.TotalBudgetMS)
	}
	if cfg.Pipeline.StageBudgetMS != 10000 || cfg.Pipeline.SoftStageBudgetMS != 2000 {
		t.Fatalf("unexpected default stage budgets: %d/%d", cfg.Pipeline.StageBudgetMS, cfg.Pipeline.SoftStageBudgetMS)
	}
	if cfg.Pipeline.AudioWeight != 0.6 || cfg.Pipeline.TextWeight != 0.4 {
		t.Fatalf("unexpected default fusion weights: %v/%v", cfg.Pipeline.AudioWeight, cfg.Pipeline.TextWeight)
	}
	if cfg.Pipeline.FallbackLanguage != "en" {
		t.Fatalf("expected fallback language en, got %q", cfg.Pipeline.FallbackLanguage)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAANI_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VAANI_BUS_USERNAME", "alice")
	t.Setenv("VAANI_BUS_PASSWORD", "secret")
	t.Setenv("VAANI_PIPELINE_TOTAL_BUDGET_MS", "20000")
	t.Setenv("VAANI_PIPELINE_SUPPORTED_LANGUAGES", "en, te")
	t.Setenv("VAANI_PIPELINE_SILENCE_RMS", "0.001")
	t.Setenv("VAANI_TRANSLATION_CACHE_ENABLED", "true")
	t.Setenv("VAANI_TRANSLATION_CACHE_REDIS_ADDR", "redis:6379")
	t.Setenv("VAANI_TTS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Pipeline.TotalBudgetMS != 20000 {
		t.Fatalf("expected total budget override, got %d", cfg.Pipeline.TotalBudgetMS)
	}
	if len(cfg.Pipeline.SupportedLanguages) != 2 {
		t.Fatalf("expected 2 supported languages, got %v", cfg.Pipeline.SupportedLanguages)
	}
	if cfg.Pipeline.SilenceRMS != 0.001 {
		t.Fatalf("expected silence rms override, got %v", cfg.Pipeline.SilenceRMS)
	}
	if !cfg.Translation.Cache.Enabled || cfg.Translation.Cache.RedisAddr != "redis:6379" {
		t.Fatalf("expected translation cache overrides")
	}
	if cfg.TTS.Enabled {
		t.Fatal("expected tts disabled override")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "vaani.yaml")
	data := `
runtime_name: test-runtime
pipeline:
  total_budget_ms: 12000
  stage_budget_ms: 8000
dialect:
  language: te
  telangana_keywords: [ra, emo]
  andhra_keywords: [andi]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "test-runtime" {
		t.Fatalf("expected runtime name from file, got %q", cfg.RuntimeName)
	}
	if cfg.Pipeline.TotalBudgetMS != 12000 || cfg.Pipeline.StageBudgetMS != 8000 {
		t.Fatalf("expected budgets from file, got %d/%d", cfg.Pipeline.TotalBudgetMS, cfg.Pipeline.StageBudgetMS)
	}
	if len(cfg.Dialect.TelanganaKeywords) != 2 {
		t.Fatalf("expected dialect keywords from file, got %v", cfg.Dialect.TelanganaKeywords)
	}
}

func TestValidateRejectsBadBudgets(t *testing.T) {
	t.Setenv("VAANI_PIPELINE_STAGE_BUDGET_MS", "20000")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for stage budget above total budget")
	}
}

func TestValidateRejectsUnknownFallback(t *testing.T) {
	t.Setenv("VAANI_PIPELINE_FALLBACK_LANGUAGE", "fr")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for fallback outside supported set")
	}
}
