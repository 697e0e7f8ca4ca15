package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AgentName != "Aleph" {
		t.Fatalf("agent_name=%q, want %q", cfg.AgentName, "Aleph")
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 2*time.Second || cfg.Retry.Multiplier != 2 {
		t.Fatalf("retry=%+v, want 3 attempts / 2s / x2", cfg.Retry)
	}
	if cfg.History.DefaultFile != "chat_history.json" {
		t.Fatalf("history.default_file=%q, want chat_history.json", cfg.History.DefaultFile)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error: %v", err)
	}
	if got := len(catalog.Models()); got != 3 {
		t.Fatalf("expected 3 default models, got %d", got)
	}
	if catalog.DefaultMode() != "core" {
		t.Fatalf("default mode=%q, want core", catalog.DefaultMode())
	}
}

func TestLoadFromOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
agent_name: Bet
models:
  - id: m1
    name: M1
    desc: first
modes:
  pirate: "Talk like a pirate."
  core: "Be brief."
retry:
  max_attempts: 5
  base_delay: 500ms
analysis:
  ignore:
    - "**/*.min.js"
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("max_attempts=%d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Fatalf("base_delay=%v, want 500ms", cfg.Retry.BaseDelay)
	}
	if len(cfg.Analysis.Ignore) != 1 || cfg.Analysis.Ignore[0] != "**/*.min.js" {
		t.Fatalf("analysis.ignore=%v", cfg.Analysis.Ignore)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error: %v", err)
	}
	if catalog.AgentName() != "Bet" {
		t.Fatalf("agent name=%q, want Bet", catalog.AgentName())
	}
	models := catalog.Models()
	if len(models) != 1 || models[0].ID != "m1" || models[0].Description != "first" {
		t.Fatalf("models=%+v, want single m1", models)
	}
	if got := catalog.Instruction("core"); got != "Be brief." {
		t.Fatalf("core instruction=%q, want override", got)
	}
	if !catalog.HasMode("quant") {
		t.Fatal("built-in quant mode should survive a partial modes override")
	}
	want := []string{"core", "quant", "debate", "pirate"}
	got := catalog.ModeNames()
	if len(got) != len(want) {
		t.Fatalf("ModeNames()=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ModeNames()=%v, want %v", got, want)
		}
	}
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "models: [\n"},
		{name: "empty model id", content: "models:\n  - name: nameless\n"},
		{name: "zero attempts", content: "retry:\n  max_attempts: 0\n"},
		{name: "shrinking backoff", content: "retry:\n  multiplier: 0.5\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.content)
			_, err := LoadFrom(dir)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestCatalogInstructionFallsBackToDefault(t *testing.T) {
	c := DefaultCatalog()
	if got, want := c.Instruction("nope"), DefaultModes()["core"]; got != want {
		t.Fatalf("Instruction(unknown) did not fall back to core")
	}
	if got, want := c.Instruction(" QUANT "), DefaultModes()["quant"]; got != want {
		t.Fatalf("Instruction should be case-insensitive")
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	c := DefaultCatalog()
	models := c.Models()
	models[0].ID = "mutated"
	if m := c.Models()[0]; m.ID == "mutated" {
		t.Fatal("Models() must return a copy")
	}
	if c.ModelName("gemini-2.5-flash") != "Gemini 2.5 Flash" {
		t.Fatalf("ModelName()=%q", c.ModelName("gemini-2.5-flash"))
	}
	if c.ModelName("unknown-model") != "unknown-model" {
		t.Fatal("ModelName should fall back to the id")
	}
}

func TestNewCatalogRejects(t *testing.T) {
	modes := map[string]string{"core": "x"}
	tests := []struct {
		name        string
		models      []Model
		modes       map[string]string
		defaultMode string
	}{
		{name: "no models", models: nil, modes: modes},
		{name: "duplicate ids", models: []Model{{ID: "a"}, {ID: "a"}}, modes: modes},
		{name: "reserved custom mode", models: []Model{{ID: "a"}}, modes: map[string]string{"custom": "x"}},
		{name: "unknown default", models: []Model{{ID: "a"}}, modes: modes, defaultMode: "quant"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCatalog("A", tc.models, tc.modes, tc.defaultMode); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "env-key")
		creds, err := LoadCredentialsFrom(filepath.Join(t.TempDir(), ".env"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if creds.APIKey != "env-key" {
			t.Fatalf("APIKey=%q, want env-key", creds.APIKey)
		}
	})

	t.Run("from dotenv file", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		os.Unsetenv(APIKeyEnv)
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte(APIKeyEnv+"=file-key\n"), 0600); err != nil {
			t.Fatal(err)
		}
		creds, err := LoadCredentialsFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if creds.APIKey != "file-key" {
			t.Fatalf("APIKey=%q, want file-key", creds.APIKey)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		os.Unsetenv(APIKeyEnv)
		_, err := LoadCredentialsFrom(filepath.Join(t.TempDir(), ".env"))
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
	})
}
