// Package config loads the sakhid daemon configuration: defaults merged
// with an optional YAML file, user values taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ServerSettings configure the HTTP ingress.
type ServerSettings struct {
	Addr string `yaml:"addr,omitempty"` // listen address (default: 127.0.0.1:8718)
}

// StorageConfig selects and tunes the memory backend.
type StorageConfig struct {
	Backend          string `yaml:"backend,omitempty"`             // "sqlite" or "inprocess"
	DBPath           string `yaml:"db_path,omitempty"`             // SQLite database file
	MaxShortTerm     int    `yaml:"max_short_term,omitempty"`      // short-term buffer cap per user
	ShortTermTTLDays int    `yaml:"short_term_ttl_days,omitempty"` // sqlite short-term expiry
}

// ContextConfig tunes the context builder recipe.
type ContextConfig struct {
	WorkingLimit      int     `yaml:"working_limit,omitempty"`
	EpisodicLimit     int     `yaml:"episodic_limit,omitempty"`
	EpisodicDiversity float64 `yaml:"episodic_diversity,omitempty"`
	TokensBudget      int     `yaml:"tokens_budget,omitempty"` // 0 = unbounded
}

// LearningConfig tunes the learning engine and its consolidation cycle.
type LearningConfig struct {
	DecayAfterDays     int  `yaml:"decay_after_days,omitempty"`
	ConsolidationHours int  `yaml:"consolidation_hours,omitempty"`
	ConsolidationOff   bool `yaml:"consolidation_off,omitempty"`
}

// ExtractorConfig selects the facet extractor.
type ExtractorConfig struct {
	Provider string `yaml:"provider,omitempty"` // "simple" or "anthropic"
	APIKey   string `yaml:"api_key,omitempty"`  // Anthropic API key
	Model    string `yaml:"model,omitempty"`
}

// EmbedderConfig configures the optional Ollama embedding client.
type EmbedderConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// RendererConfig configures the optional OpenRouter reply renderer.
type RendererConfig struct {
	APIKey             string  `yaml:"api_key,omitempty"` // OpenRouter API key; empty disables the renderer
	Model              string  `yaml:"model,omitempty"`
	ModerationAPIKey   string  `yaml:"moderation_api_key,omitempty"` // OpenAI key for the safety gate
	ToxicityThreshold  float64 `yaml:"toxicity_threshold,omitempty"`
	ModerationFailOpen bool    `yaml:"moderation_fail_open,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // trace, debug, info, warn, error
	Path  string `yaml:"path,omitempty"`  // log file; empty logs to stderr
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerSettings  `yaml:"server,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Context   ContextConfig   `yaml:"context,omitempty"`
	Learning  LearningConfig  `yaml:"learning,omitempty"`
	Extractor ExtractorConfig `yaml:"extractor,omitempty"`
	Embedder  EmbedderConfig  `yaml:"embedder,omitempty"`
	Renderer  RendererConfig  `yaml:"renderer,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// GetConfigPath returns the config file path, honoring SAKHID_CONFIG_PATH.
func GetConfigPath() string {
	if envPath := os.Getenv("SAKHID_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.sakhid/config.yaml"
	}
	return filepath.Join(homeDir, ".sakhid", "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerSettings{Addr: "127.0.0.1:8718"},
		Storage: StorageConfig{
			Backend:          "sqlite",
			DBPath:           "~/.sakhid/sakhid.db",
			MaxShortTerm:     25,
			ShortTermTTLDays: 14,
		},
		Context: ContextConfig{
			WorkingLimit:      5,
			EpisodicLimit:     5,
			EpisodicDiversity: 0.6,
		},
		Learning: LearningConfig{
			DecayAfterDays:     14,
			ConsolidationHours: 24,
		},
		Extractor: ExtractorConfig{
			Provider: "simple",
			Model:    "claude-haiku-4-5",
		},
		Embedder: EmbedderConfig{Model: "mxbai-embed-large"},
		Renderer: RendererConfig{
			Model:             "deepseek/deepseek-chat",
			ToxicityThreshold: 0.5,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path and merges it over the defaults. A
// missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &cfg, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(raw, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "sqlite", "inprocess":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Extractor.Provider {
	case "simple", "anthropic":
	default:
		return fmt.Errorf("unknown extractor provider %q", c.Extractor.Provider)
	}
	if c.Context.EpisodicDiversity < 0 || c.Context.EpisodicDiversity > 1 {
		return fmt.Errorf("context.episodic_diversity must be in [0,1]")
	}
	return nil
}

// ExpandedDBPath returns the storage path with ~ expanded.
func (c *Config) ExpandedDBPath() string {
	return expandPath(c.Storage.DBPath)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
