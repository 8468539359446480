package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	if NewLoader().GetViper() != viper.GetViper() {
		t.Error("NewLoader should use the global viper instance")
	}
	if NewLoaderWithViper(nil).GetViper() == nil {
		t.Error("NewLoaderWithViper(nil) should create an instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Sticker.Border != 15 {
		t.Errorf("Expected default border 15, got %d", cfg.Sticker.Border)
	}
	if cfg.Pipeline.Mask.Threshold != 127 {
		t.Errorf("Expected mask threshold 127, got %d", cfg.Pipeline.Mask.Threshold)
	}
	if cfg.Report.File != "report.pdf" {
		t.Errorf("Expected default report file, got %s", cfg.Report.File)
	}
}

// TestLoadFromSearchPath finds sticker.yaml in the working directory.
func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "sticker.yaml", `
log_level: debug
sticker:
  style: black and white
  border: 25
  refine: false
`)
	chdir(t, dir)

	l := newTestLoader()
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Sticker.Style != "black and white" || cfg.Sticker.Border != 25 || cfg.Sticker.Refine {
		t.Errorf("Unexpected sticker section %+v", cfg.Sticker)
	}
	if !strings.HasSuffix(l.GetConfigFileUsed(), "sticker.yaml") {
		t.Errorf("Unexpected config file used: %s", l.GetConfigFileUsed())
	}
}

// TestLoadWithFile loads an explicit file with nested stage settings.
func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "custom.yaml", `
pipeline:
  preprocess:
    max_width: 512
  mask:
    padding: 9
    refine:
      backend: native
      iterations: 2
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
batch:
  include: ["*.jpg", "*.png"]
`)
	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if cfg.Pipeline.Preprocess.MaxWidth != 512 {
		t.Errorf("Expected max width 512, got %d", cfg.Pipeline.Preprocess.MaxWidth)
	}
	if cfg.Pipeline.Preprocess.MaxHeight != 800 {
		t.Errorf("Expected default max height 800, got %d", cfg.Pipeline.Preprocess.MaxHeight)
	}
	if cfg.Pipeline.Mask.Padding != 9 || cfg.Pipeline.Mask.Refine.Iterations != 2 {
		t.Errorf("Unexpected mask config %+v", cfg.Pipeline.Mask)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMinute != 5 {
		t.Errorf("Unexpected server config %+v", cfg.Server)
	}
	if len(cfg.Batch.Include) != 2 || cfg.Batch.Include[0] != "*.jpg" {
		t.Errorf("Unexpected include patterns %v", cfg.Batch.Include)
	}
}

func TestLoadWithFile_Missing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}
}

func TestLoadWithFile_Invalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "bad.yaml", "sticker:\n  border: 99\n")
	l := newTestLoader()
	if _, err := l.LoadWithFile(path); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() error: %v", err)
	}
	if cfg.Sticker.Border != 99 {
		t.Errorf("Expected border 99, got %d", cfg.Sticker.Border)
	}
}

func TestLoadWithFile_Malformed(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "broken.yaml", "sticker: [unclosed\n")
	if _, err := newTestLoader().LoadWithFile(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

// TestEnvironmentOverrides checks STICKER_* variables.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STICKER_LOG_LEVEL", "warn")
	t.Setenv("STICKER_SERVER_PORT", "7070")
	t.Setenv("STICKER_STICKER_BORDER", "10")
	t.Setenv("STICKER_PIPELINE_MASK_REFINE_ITERATIONS", "3")

	path := writeConfig(t, t.TempDir(), "sticker.yaml", "log_level: debug\n")
	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected env log level warn, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Sticker.Border != 10 {
		t.Errorf("Expected env border 10, got %d", cfg.Sticker.Border)
	}
	if cfg.Pipeline.Mask.Refine.Iterations != 3 {
		t.Errorf("Expected env iterations 3, got %d", cfg.Pipeline.Mask.Refine.Iterations)
	}
}

func TestLoaderGetSet(t *testing.T) {
	l := newTestLoader()
	l.Set("output.format", "json")
	if got := l.Get("output.format"); got != "json" {
		t.Errorf("Expected json, got %v", got)
	}
}

// TestGenerateDefaultConfigFile round-trips the generated file.
func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sticker.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, key := range []string{"sticker:", "pipeline:", "server:", "report:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Generated config lacks %s", key)
		}
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("Generated config should load: %v", err)
	}
	if cfg.Sticker.Border != 15 {
		t.Errorf("Expected border 15, got %d", cfg.Sticker.Border)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	want := map[string]bool{"/tmp/xdg/sticker": false, "/etc/sticker": false}
	for _, p := range paths {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, found := range want {
		if !found {
			t.Errorf("Search paths lack %s: %v", p, paths)
		}
	}
}
