package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("unexpected default port %d", cfg.HTTPPort)
	}
	if cfg.BuildTimeout != 10*time.Minute {
		t.Errorf("unexpected default build timeout %s", cfg.BuildTimeout)
	}
	if cfg.FailOnExit {
		t.Error("non-zero build exits must default to warn-only")
	}
	if cfg.PollSchedule != "" {
		t.Error("polling must default to disabled")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "http_port: 9000\nmedia_root: /srv/media\nworkers: 8\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	// Environment wins over the file.
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("FAIL_ON_EXIT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9100 {
		t.Errorf("expected env override 9100, got %d", cfg.HTTPPort)
	}
	if cfg.MediaRoot != "/srv/media" {
		t.Errorf("file value not applied: %s", cfg.MediaRoot)
	}
	if cfg.Workers != 8 {
		t.Errorf("file value not applied: %d", cfg.Workers)
	}
	if !cfg.FailOnExit {
		t.Error("env bool override not applied")
	}
}

func TestPackageDir(t *testing.T) {
	cfg := &Config{AgentPackageDir: "a", ProtocolPackageDir: "p"}
	if cfg.PackageDir("agents") != "a" {
		t.Error("unexpected agent package dir")
	}
	if cfg.PackageDir("protocols") != "p" {
		t.Error("unexpected protocol package dir")
	}
}
