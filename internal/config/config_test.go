package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	t.Parallel()
	got := ExpandPath("~/journal.db")
	if got == "~/journal.db" {
		t.Fatalf("expected home-expanded path, got %q", got)
	}
	if !strings.Contains(got, "journal.db") {
		t.Fatalf("expected expanded path to contain file name, got %q", got)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TriggerPolicy != PolicyThreshold {
		t.Fatalf("expected default trigger policy, got %q", cfg.TriggerPolicy)
	}
	if cfg.TriggerThreshold != 0.75 {
		t.Fatalf("expected default threshold 0.75, got %v", cfg.TriggerThreshold)
	}
}

func TestLoad_OverridesAndValidates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rmm.yaml")
	body := "server_name: sim\ntrigger_policy: chance\nbaseline_modulation: 0.2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerName != "sim" {
		t.Fatalf("expected server_name sim, got %q", cfg.ServerName)
	}
	if cfg.TriggerPolicy != PolicyChance {
		t.Fatalf("expected chance policy, got %q", cfg.TriggerPolicy)
	}
	if cfg.BaselineModulation != 0.2 {
		t.Fatalf("expected baseline 0.2, got %v", cfg.BaselineModulation)
	}
}

func TestValidate_RejectsBadPolicy(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.TriggerPolicy = "vibes"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid trigger_policy error, got nil")
	}
}
