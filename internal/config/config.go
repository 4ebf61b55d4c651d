// Package config loads traceboard's on-disk JSON configuration: which log
// roots to scan for which provider, where the index database lives, and
// the reactor thresholds the runtime coordinator dispatches against.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/traceboard/traceboard/internal/provider"
)

var (
	// ErrConfigMissing is returned when the config file does not exist.
	ErrConfigMissing = errors.New("traceboard config missing")
	// ErrConfigInvalid is returned when required fields are missing or
	// malformed.
	ErrConfigInvalid = errors.New("traceboard config invalid")
)

// LogRoot names one directory traceboard should scan for a given
// provider's session logs.
type LogRoot struct {
	Provider provider.Name `json:"provider"`
	Path     string        `json:"path"`
}

// ReactorThresholds configures the shipped reactors.
type ReactorThresholds struct {
	// TokenWarningPct is the percentage of a model's context window that
	// triggers a warning-level reaction. Defaults to 80.0.
	TokenWarningPct float64 `json:"token_warning_pct"`
	// TokenCriticalPct is the percentage that triggers a critical-level
	// reaction. Defaults to 95.0.
	TokenCriticalPct float64 `json:"token_critical_pct"`
}

// Config is traceboard's top-level configuration document.
type Config struct {
	// LogRoots lists every provider/directory pair scan and watch draw
	// from.
	LogRoots []LogRoot `json:"log_roots"`
	// IndexPath is where the SQLite index database lives.
	IndexPath string `json:"index_path"`
	// Reactors configures the shipped reactor thresholds.
	Reactors ReactorThresholds `json:"reactors"`
}

// DefaultPath returns traceboard's default config file path,
// ~/.traceboard/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".traceboard", "config.json"), nil
}

// DefaultIndexPath returns traceboard's default index database path,
// ~/.traceboard/index.db.
func DefaultIndexPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".traceboard", "index.db"), nil
}

// Load reads and validates the config at path. An empty path resolves to
// DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("read traceboard config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse traceboard config: %w", err)
	}

	if len(cfg.LogRoots) == 0 {
		return nil, ErrConfigInvalid
	}
	for _, root := range cfg.LogRoots {
		if root.Path == "" || root.Provider == "" {
			return nil, ErrConfigInvalid
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.IndexPath == "" {
		if path, err := DefaultIndexPath(); err == nil {
			cfg.IndexPath = path
		}
	}
	if cfg.Reactors.TokenWarningPct <= 0 {
		cfg.Reactors.TokenWarningPct = 80.0
	}
	if cfg.Reactors.TokenCriticalPct <= 0 {
		cfg.Reactors.TokenCriticalPct = 95.0
	}
}
