package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Engine     EngineConfig     `koanf:"engine"`
	Provider   ProviderConfig   `koanf:"provider"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Store      StoreConfig      `koanf:"store"`
	Index      IndexConfig      `koanf:"index"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// EngineConfig controls the dissection engine itself: how many artifacts
// are dissected concurrently and where the run outputs land.
type EngineConfig struct {
	Parallelism         int    `koanf:"parallelism"`
	ProbeTimeoutSeconds int    `koanf:"probe_timeout_seconds"`
	ScratchDir          string `koanf:"scratch_dir"`
	OutputDir           string `koanf:"output_dir"`
	BlueprintName       string `koanf:"blueprint_name"`
}

// ProviderConfig selects the completion backend used to probe artifacts.
type ProviderConfig struct {
	Kind           string `koanf:"kind"` // ollama, openai, mock
	Model          string `koanf:"model"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type ClassifierConfig struct {
	TablePath string `koanf:"table_path"`
}

type StoreConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type IndexConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Addr       string `koanf:"addr"`
	Collection string `koanf:"collection"`
}

type TelemetryConfig struct {
	Enabled            bool   `koanf:"enabled"`
	Exporter           string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile loads the base config file and, when profile is non-empty,
// merges config.<profile>.<ext> from the same directory over it. A missing
// profile file is not an error; the base values stand.
func LoadWithProfile(path, profile string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("engine.parallelism", 4)
	k.Set("engine.probe_timeout_seconds", 30)
	k.Set("engine.scratch_dir", "")
	k.Set("engine.output_dir", ".")
	k.Set("engine.blueprint_name", "chimera-blueprint")

	k.Set("provider.kind", "ollama")
	k.Set("provider.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("provider.base_url", "http://localhost:11434")
	k.Set("provider.timeout_seconds", 120)

	k.Set("classifier.table_path", "")

	k.Set("store.enabled", true)
	k.Set("store.path", "chimera.db")

	k.Set("index.enabled", false)
	k.Set("index.addr", "localhost:6334")
	k.Set("index.collection", "chimera_artifacts")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_insecure", true)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Merge the profile file over the base, if one exists
	if path != "" && profile != "" {
		profilePath := profileFilePath(path, profile)
		if _, err := os.Stat(profilePath); err == nil {
			if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	// 3. Load from ENV (CHIMERA_PROVIDER_KIND -> provider.kind)
	if err := k.Load(env.Provider("CHIMERA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CHIMERA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// cliOverride is a single --set key=value pair.
type cliOverride struct {
	key   string
	value string
}

// cliOptions holds the file selection flags parsed from CLI arguments.
type cliOptions struct {
	configPath string
	profile    string
}

// LoadWithCLI loads configuration and then applies CLI overrides on top.
// Recognized arguments are "--config <path>", "--profile <name>" (alias
// "--env") and repeated "--set key=value"; --set wins over file and
// environment values.
func LoadWithCLI(args []string) (*Config, error) {
	opts, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadWithProfile(opts.configPath, opts.profile)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return cfg, nil
	}

	for _, o := range overrides {
		k.Set(o.key, decodeOverrideValue(o.value))
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCLIOverrides(args []string) (cliOptions, []cliOverride, error) {
	var opts cliOptions
	var overrides []cliOverride

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--config requires a path argument")
			}
			i++
			opts.configPath = args[i]
		case strings.HasPrefix(args[i], "--config="):
			opts.configPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--profile" || args[i] == "--env":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("%s requires a profile name", args[i])
			}
			i++
			opts.profile = args[i]
		case strings.HasPrefix(args[i], "--profile="):
			opts.profile = strings.TrimPrefix(args[i], "--profile=")
		case strings.HasPrefix(args[i], "--env="):
			opts.profile = strings.TrimPrefix(args[i], "--env=")
		case args[i] == "--set":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--set requires a key=value argument")
			}
			i++
			o, err := splitOverride(args[i])
			if err != nil {
				return opts, nil, err
			}
			overrides = append(overrides, o)
		case strings.HasPrefix(args[i], "--set="):
			o, err := splitOverride(strings.TrimPrefix(args[i], "--set="))
			if err != nil {
				return opts, nil, err
			}
			overrides = append(overrides, o)
		}
	}

	return opts, overrides, nil
}

// profileFilePath derives the profile variant of a config path:
// /etc/chimera/config.yaml + "dev" -> /etc/chimera/config.dev.yaml.
func profileFilePath(path, profile string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, name+"."+profile+ext)
}

func splitOverride(raw string) (cliOverride, error) {
	idx := strings.Index(raw, "=")
	if idx <= 0 {
		return cliOverride{}, fmt.Errorf("invalid --set value %q, expected key=value", raw)
	}
	return cliOverride{key: raw[:idx], value: raw[idx+1:]}, nil
}

// decodeOverrideValue interprets an override value as JSON when possible
// (numbers, booleans, objects, arrays) and falls back to the raw string.
func decodeOverrideValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
