package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podforge/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, path, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.TTS.SampleRateHz != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.TTS.SampleRateHz)
	}
	if cfg.Search.MaxResults != 5 {
		t.Fatalf("expected default max results, got %d", cfg.Search.MaxResults)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		`[paths]`,
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		`[tts]`,
		`sample_rate_hz = 8000`,
		`host_voice = "Amy"`,
		`[logging]`,
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.TTS.SampleRateHz != 8000 {
		t.Fatalf("sample rate: got %d", cfg.TTS.SampleRateHz)
	}
	if cfg.TTS.HostVoice != "Amy" {
		t.Fatalf("host voice: got %q", cfg.TTS.HostVoice)
	}
	if cfg.TTS.ExpertVoice != "Matthew" {
		t.Fatalf("expert voice default: got %q", cfg.TTS.ExpertVoice)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := config.Default()
	cfg.TTS.SampleRateHz = 44100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported sample rate")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestEnvOverrideAPIKey(t *testing.T) {
	t.Setenv("PODFORGE_LLM_API_KEY", "env-key")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected env override, got %q", cfg.LLM.APIKey)
	}
}
