package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Trigger policy names accepted in configuration.
const (
	PolicyThreshold = "threshold"
	PolicyChance    = "chance"
)

// Config contains runtime configuration for rmm-mcp.
type Config struct {
	ServerName           string  `yaml:"server_name"`
	DBPath               string  `yaml:"db_path"`
	LogLevel             string  `yaml:"log_level"`
	TriggerPolicy        string  `yaml:"trigger_policy"`
	TriggerThreshold     float64 `yaml:"trigger_threshold"`
	TriggerChance        float64 `yaml:"trigger_chance"`
	CorrectionChance     float64 `yaml:"correction_chance"`
	BaselineModulation   float64 `yaml:"baseline_modulation"`
	StrengthFloor        float64 `yaml:"strength_floor"`
	CycleIntervalSeconds int     `yaml:"cycle_interval_seconds"`
	ValuesPath           string  `yaml:"values_path"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:           "rmm-mcp",
		DBPath:               filepath.Join(userHomeDir(), ".rmm-mcp", "journal.db"),
		LogLevel:             "info",
		TriggerPolicy:        PolicyThreshold,
		TriggerThreshold:     0.75,
		TriggerChance:        0.2,
		CorrectionChance:     0.7,
		BaselineModulation:   0.1,
		StrengthFloor:        0.1,
		CycleIntervalSeconds: 0,
		ValuesPath:           "",
	}
}

// Load loads config from disk; if path does not exist, default config is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.TriggerPolicy != PolicyThreshold && c.TriggerPolicy != PolicyChance {
		return fmt.Errorf("trigger_policy must be %q or %q", PolicyThreshold, PolicyChance)
	}
	if c.TriggerThreshold <= 0 || c.TriggerThreshold >= 1 {
		return errors.New("trigger_threshold must be in (0, 1)")
	}
	if c.TriggerChance < 0 || c.TriggerChance > 1 {
		return errors.New("trigger_chance must be in [0, 1]")
	}
	if c.CorrectionChance < 0 || c.CorrectionChance > 1 {
		return errors.New("correction_chance must be in [0, 1]")
	}
	if c.BaselineModulation <= 0 {
		return errors.New("baseline_modulation must be > 0")
	}
	if c.StrengthFloor <= 0 {
		return errors.New("strength_floor must be > 0")
	}
	if c.CycleIntervalSeconds < 0 {
		return errors.New("cycle_interval_seconds must be >= 0")
	}
	return nil
}

// EnsurePaths creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.DBPath = ExpandPath(c.DBPath)
	c.ValuesPath = ExpandPath(c.ValuesPath)
	parent := filepath.Dir(c.DBPath)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create db parent dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
