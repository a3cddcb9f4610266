package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stylec/metrics"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if !cfg.Engine.Strict {
		t.Error("Expected strict engine by default")
	}
	if cfg.Storage.Size != 1000 || cfg.Storage.Expiry != 720*time.Hour {
		t.Errorf("Storage defaults = %+v", cfg.Storage)
	}
	if cfg.Metrics.Platform != "android" || cfg.Metrics.Window.Width != 360 {
		t.Errorf("Metrics defaults = %+v", cfg.Metrics)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
engine:
  strict: false
  trace: true
metrics:
  platform: ios
  notched: true
  window:
    width: 812
    height: 375
storage:
  path: ` + filepath.Join(tmpDir, "db", "kv.db") + `
  expiry: 1h30m
logging:
  console:
    level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Engine.Strict || !cfg.Engine.Trace {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Storage.Expiry != 90*time.Minute {
		t.Errorf("Expiry = %v, want 1h30m", cfg.Storage.Expiry)
	}
	// not mentioned in file - taken from template
	if cfg.Storage.Size != 1000 {
		t.Errorf("Size = %d, want 1000", cfg.Storage.Size)
	}
	if cfg.Metrics.Screen.Height != 640 {
		t.Errorf("Screen = %+v", cfg.Metrics.Screen)
	}
	// sanitizer creates directory for database file
	if _, err := os.Stat(filepath.Join(tmpDir, "db")); err != nil {
		t.Errorf("storage directory was not created: %v", err)
	}

	dc, err := cfg.Metrics.DeviceConfig()
	if err != nil {
		t.Fatalf("DeviceConfig() error = %v", err)
	}
	snap := metrics.NewDevice(dc).Current()
	if snap.Orientation != metrics.Landscape || snap.StatusBarHeight != metrics.IOSStatusBarHeight {
		t.Errorf("snapshot = %+v", snap)
	}

	sc := cfg.Storage.StoreConfig()
	if sc.Size != 1000 || sc.Expiry != 90*time.Minute || !strings.HasSuffix(sc.Path, "kv.db") {
		t.Errorf("StoreConfig() = %+v", sc)
	}
}

func TestLoadConfiguration_Invalid(t *testing.T) {
	tests := map[string]string{
		"version":       "version: 2\n",
		"unknown field": "version: 1\nengine:\n  fast: true\n",
		"platform":      "version: 1\nmetrics:\n  platform: symbian\n",
		"size":          "version: 1\nstorage:\n  size: 0\n",
		"log level":     "version: 1\nlogging:\n  console:\n    level: loud\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_MissingFile(t *testing.T) {
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPrepareAndDump(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, false)
	if err != nil {
		t.Fatalf("Prepared config is not valid: %v", err)
	}

	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	for _, want := range []string{"version: 1", "strict: true", "expiry: 720h0m0s", "platform: android"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("Dump() lacks %q:\n%s", want, out)
		}
	}

	// dump can be loaded back
	if _, err := unmarshalConfig(out, &Config{}, false); err != nil {
		t.Errorf("Dumped config does not load: %v", err)
	}
}
