package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/traceboard/traceboard/internal/provider"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{"log_roots":[{"provider":"claude_code","path":"/logs/claude"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Reactors.TokenWarningPct != 80.0 {
		t.Fatalf("expected default warning threshold 80.0, got %v", cfg.Reactors.TokenWarningPct)
	}
	if cfg.Reactors.TokenCriticalPct != 95.0 {
		t.Fatalf("expected default critical threshold 95.0, got %v", cfg.Reactors.TokenCriticalPct)
	}
	if cfg.IndexPath == "" {
		t.Fatalf("expected a default index path to be applied")
	}
}

func TestLoadMissingFileReturnsSentinel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != ErrConfigMissing {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestLoadRejectsEmptyLogRoots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"log_roots":[]}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err != ErrConfigInvalid {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadRejectsLogRootMissingPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{"log_roots":[{"provider":"codex","path":""}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err != ErrConfigInvalid {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadHonorsExplicitThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := `{"log_roots":[{"provider":"gemini_cli","path":"/logs/gemini"}],"reactors":{"token_warning_pct":70,"token_critical_pct":90}}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Reactors.TokenWarningPct != 70 || cfg.Reactors.TokenCriticalPct != 90 {
		t.Fatalf("explicit thresholds should not be overridden by defaults: %+v", cfg.Reactors)
	}
	if cfg.LogRoots[0].Provider != provider.GeminiCLI {
		t.Fatalf("expected gemini_cli provider, got %s", cfg.LogRoots[0].Provider)
	}
}
