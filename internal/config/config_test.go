package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputDir_Default(t *testing.T) {
	os.Unsetenv(EnvOutputDir)
	os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(cfg.DataDir(), "output")
	if cfg.OutputDir() != want {
		t.Errorf("default OutputDir = %q, want %q", cfg.OutputDir(), want)
	}
}

func TestOutputDir_FromEnv(t *testing.T) {
	os.Setenv(EnvOutputDir, "/tmp/processed")
	defer os.Unsetenv(EnvOutputDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir() != "/tmp/processed" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir(), "/tmp/processed")
	}
}

func TestPort_Invalid(t *testing.T) {
	tests := []string{"abc", "0", "70000", "-1"}
	for _, v := range tests {
		os.Setenv(EnvPort, v)
		if _, err := New(); err == nil {
			t.Errorf("New() with %s=%q expected error, got nil", EnvPort, v)
		}
	}
	os.Unsetenv(EnvPort)
}

func TestAIDefaults(t *testing.T) {
	os.Unsetenv(EnvAIBaseURL)
	os.Unsetenv(EnvAIModel)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AIBaseURL() != DefaultAIBaseURL {
		t.Errorf("AIBaseURL = %q, want %q", cfg.AIBaseURL(), DefaultAIBaseURL)
	}
	if cfg.AIModel() != DefaultAIModel {
		t.Errorf("AIModel = %q, want %q", cfg.AIModel(), DefaultAIModel)
	}
}
