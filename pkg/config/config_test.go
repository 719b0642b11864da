package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	resetKoanf(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Kind != "ollama" {
		t.Errorf("expected default provider kind ollama, got %s", cfg.Provider.Kind)
	}
	if cfg.Engine.Parallelism != 4 {
		t.Errorf("expected default parallelism 4, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.ProbeTimeoutSeconds != 30 {
		t.Errorf("expected default probe timeout 30, got %d", cfg.Engine.ProbeTimeoutSeconds)
	}
	if !cfg.Store.Enabled {
		t.Errorf("expected store enabled by default")
	}
	if cfg.Store.Path != "chimera.db" {
		t.Errorf("expected default store path chimera.db, got %s", cfg.Store.Path)
	}
	if cfg.Index.Enabled {
		t.Errorf("expected index disabled by default")
	}
	if cfg.Index.Addr != "localhost:6334" {
		t.Errorf("expected default index addr, got %s", cfg.Index.Addr)
	}
}

func TestLoadEnv(t *testing.T) {
	resetKoanf(t)
	os.Setenv("CHIMERA_PROVIDER_KIND", "openai")
	defer os.Unsetenv("CHIMERA_PROVIDER_KIND")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Kind != "openai" {
		t.Errorf("expected provider kind openai from env, got %s", cfg.Provider.Kind)
	}
}

func TestLoadFile(t *testing.T) {
	resetKoanf(t)
	tmpDir := t.TempDir()
	content := `
engine:
  parallelism: 8
  output_dir: "/tmp/chimera-out"
provider:
  kind: "mock"
index:
  enabled: true
  collection: "test_artifacts"
`
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.Parallelism != 8 {
		t.Errorf("expected parallelism 8, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.OutputDir != "/tmp/chimera-out" {
		t.Errorf("unexpected output dir %s", cfg.Engine.OutputDir)
	}
	if cfg.Provider.Kind != "mock" {
		t.Errorf("expected provider kind mock, got %s", cfg.Provider.Kind)
	}
	if !cfg.Index.Enabled {
		t.Errorf("expected index enabled from file")
	}
	if cfg.Index.Collection != "test_artifacts" {
		t.Errorf("unexpected collection %s", cfg.Index.Collection)
	}
	// Untouched keys keep their defaults.
	if cfg.Engine.BlueprintName != "chimera-blueprint" {
		t.Errorf("expected default blueprint name, got %s", cfg.Engine.BlueprintName)
	}
}

func TestLoadWithProfile(t *testing.T) {
	// Create temp directory with config files
	tmpDir := t.TempDir()

	// Base config
	baseConfig := `
provider:
  kind: "ollama"
  model: "llama3.1"
log:
  level: "info"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	// Dev profile override
	devConfig := `
provider:
  kind: "mock"
log:
  level: "debug"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	// Prod profile override
	prodConfig := `
provider:
  kind: "openai"
log:
  level: "warn"
`
	prodPath := filepath.Join(tmpDir, "config.prod.yaml")
	if err := os.WriteFile(prodPath, []byte(prodConfig), 0644); err != nil {
		t.Fatalf("failed to write prod config: %v", err)
	}

	tests := []struct {
		name         string
		profile      string
		wantKind     string
		wantLogLevel string
		wantModel    string // Should inherit from base when not overridden
	}{
		{
			name:         "no profile - base only",
			profile:      "",
			wantKind:     "ollama",
			wantLogLevel: "info",
			wantModel:    "llama3.1",
		},
		{
			name:         "dev profile",
			profile:      "dev",
			wantKind:     "mock",
			wantLogLevel: "debug",
			wantModel:    "llama3.1", // Not overridden in dev
		},
		{
			name:         "prod profile",
			profile:      "prod",
			wantKind:     "openai",
			wantLogLevel: "warn",
			wantModel:    "llama3.1", // Not overridden in prod
		},
		{
			name:         "nonexistent profile - falls back to base",
			profile:      "staging",
			wantKind:     "ollama",
			wantLogLevel: "info",
			wantModel:    "llama3.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resetKoanf(t)
			cfg, err := LoadWithProfile(basePath, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}

			if cfg.Provider.Kind != tc.wantKind {
				t.Errorf("provider kind: got %s, want %s", cfg.Provider.Kind, tc.wantKind)
			}
			if cfg.Log.Level != tc.wantLogLevel {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.wantLogLevel)
			}
			if cfg.Provider.Model != tc.wantModel {
				t.Errorf("model: got %s, want %s", cfg.Provider.Model, tc.wantModel)
			}
		})
	}
}

func TestLoadWithCLIProfile(t *testing.T) {
	// Create temp directory with config files
	tmpDir := t.TempDir()

	baseConfig := `
provider:
  kind: "ollama"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
provider:
  kind: "mock"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name     string
		args     []string
		wantKind string
	}{
		{
			name:     "profile flag",
			args:     []string{"--config", basePath, "--profile", "dev"},
			wantKind: "mock",
		},
		{
			name:     "env flag alias",
			args:     []string{"--config", basePath, "--env", "dev"},
			wantKind: "mock",
		},
		{
			name:     "profile with equals",
			args:     []string{"--config=" + basePath, "--profile=dev"},
			wantKind: "mock",
		},
		{
			name:     "env with equals",
			args:     []string{"--config=" + basePath, "--env=dev"},
			wantKind: "mock",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resetKoanf(t)
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI failed: %v", err)
			}

			if cfg.Provider.Kind != tc.wantKind {
				t.Errorf("provider kind: got %s, want %s", cfg.Provider.Kind, tc.wantKind)
			}
		})
	}
}
