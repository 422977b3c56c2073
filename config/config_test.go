package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEARCH_PRESET_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Timeout != 60*time.Second {
		t.Errorf("api timeout = %s", cfg.API.Timeout)
	}
	if cfg.Poller.MinJobAge != 10*time.Minute {
		t.Errorf("min job age = %s", cfg.Poller.MinJobAge)
	}
	if cfg.Poller.RefreshMinAge != 3*time.Minute {
		t.Errorf("refresh min age = %s", cfg.Poller.RefreshMinAge)
	}
	if cfg.Website.BatchSize != 20 {
		t.Errorf("batch size = %d", cfg.Website.BatchSize)
	}
	if cfg.CSVDir != "downloads" {
		t.Errorf("csv dir = %q", cfg.CSVDir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_PRESET_DIR", t.TempDir())
	t.Setenv("JOB_MIN_AGE", "30m")
	t.Setenv("SCRAPE_BATCH_SIZE", "5")
	t.Setenv("POLL_CRON", "0 */2 * * *")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Poller.MinJobAge != 30*time.Minute {
		t.Errorf("min job age = %s, want 30m", cfg.Poller.MinJobAge)
	}
	if cfg.Website.BatchSize != 5 {
		t.Errorf("batch size = %d, want 5", cfg.Website.BatchSize)
	}
	if cfg.Scheduler.Cron != "0 */2 * * *" {
		t.Errorf("cron = %q", cfg.Scheduler.Cron)
	}
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	preset := `name: cafes-istanbul
keywords:
  - cafe istanbul
  - kahve istanbul
lang: tr
zoom: 15
depth: 2
email: true
max_time: 3600
`
	if err := os.WriteFile(filepath.Join(dir, "cafes-istanbul.yaml"), []byte(preset), 0644); err != nil {
		t.Fatal(err)
	}
	// Name defaults to the file name when omitted.
	if err := os.WriteFile(filepath.Join(dir, "unnamed.yaml"), []byte("keywords: [dentist ankara]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SEARCH_PRESET_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Presets) != 2 {
		t.Fatalf("presets = %d, want 2", len(cfg.Presets))
	}

	cafes := cfg.Presets["cafes-istanbul"]
	if cafes == nil {
		t.Fatal("cafes-istanbul preset missing")
	}
	if len(cafes.Keywords) != 2 || cafes.Lang != "tr" || !cafes.Email {
		t.Errorf("preset = %+v", cafes)
	}

	if cfg.Presets["unnamed"] == nil {
		t.Error("preset without name should default to file name")
	}
}

func TestLoadMissingPresetDir(t *testing.T) {
	t.Setenv("SEARCH_PRESET_DIR", filepath.Join(t.TempDir(), "does-not-exist"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should tolerate a missing preset dir: %v", err)
	}
	if len(cfg.Presets) != 0 {
		t.Errorf("presets = %d, want 0", len(cfg.Presets))
	}
}
