package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"cqb/internal/errors"
)

// Config represents the complete CQB configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	Corpus   string `json:"corpus" mapstructure:"corpus"`
	Registry string `json:"registry" mapstructure:"registry"`

	Engine  EngineConfig  `json:"engine" mapstructure:"engine"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Count   CountConfig   `json:"count" mapstructure:"count"`
	Score   ScoreConfig   `json:"score" mapstructure:"score"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// EngineConfig contains settings for the external query engine process
type EngineConfig struct {
	// Binary is the path to the query engine executable
	Binary string `json:"binary" mapstructure:"binary"`
	// Scanner is the path to the batch frequency scanner executable
	Scanner string `json:"scanner" mapstructure:"scanner"`
	// Options are processing options pushed to the engine after startup
	Options map[string]string `json:"options" mapstructure:"options"`
	// TimeoutSeconds is the hard execution ceiling per request
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	// TimeoutFactor scales the ceiling (e.g. 2.0 for slow corpora)
	TimeoutFactor float64 `json:"timeoutFactor" mapstructure:"timeoutFactor"`
	// PollSeconds is the watchdog poll interval
	PollSeconds int `json:"pollSeconds" mapstructure:"pollSeconds"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	// Path is the cache database location; empty disables caching
	Path string `json:"path" mapstructure:"path"`
	// Compress enables zstd compression of cached tables
	Compress bool `json:"compress" mapstructure:"compress"`
}

// CountConfig contains frequency-counting defaults
type CountConfig struct {
	Attributes []string `json:"attributes" mapstructure:"attributes"`
	Split      bool     `json:"split" mapstructure:"split"`
}

// ScoreConfig contains association-scoring defaults
type ScoreConfig struct {
	Measure        string `json:"measure" mapstructure:"measure"`
	MinFreq        int    `json:"minFreq" mapstructure:"minFreq"`
	Cutoff         int    `json:"cutoff" mapstructure:"cutoff"`
	Digits         int    `json:"digits" mapstructure:"digits"`
	FoldCase       bool   `json:"foldCase" mapstructure:"foldCase"`
	FoldDiacritics bool   `json:"foldDiacritics" mapstructure:"foldDiacritics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Corpus:   "",
		Registry: "/usr/local/share/cwb/registry",
		Engine: EngineConfig{
			Binary:  "cqp",
			Scanner: "cwb-scan-corpus",
			Options: map[string]string{
				"PrettyPrint":  "off",
				"ProgressBar":  "off",
				"Timing":       "off",
				"AutoShow":     "off",
				"AutoSubquery": "off",
			},
			TimeoutSeconds: 900,
			TimeoutFactor:  1.0,
			PollSeconds:    5,
		},
		Cache: CacheConfig{
			Path:     filepath.Join(".cqb", "cache.db"),
			Compress: true,
		},
		Count: CountConfig{
			Attributes: []string{"word"},
			Split:      true,
		},
		Score: ScoreConfig{
			Measure:        "log-likelihood",
			MinFreq:        2,
			Cutoff:         100,
			Digits:         6,
			FoldCase:       false,
			FoldDiacritics: false,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <root>/.cqb/config.json.
// A missing config file yields the defaults, not an error.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".cqb"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to <root>/.cqb/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".cqb")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.Binary == "" {
		return errors.Newf(errors.ConfigInvalid, "engine.binary must not be empty")
	}
	if c.Registry == "" {
		return errors.Newf(errors.ConfigInvalid, "registry must not be empty")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.Newf(errors.ConfigInvalid, "engine.timeoutSeconds must be positive, got %d", c.Engine.TimeoutSeconds)
	}
	if c.Engine.TimeoutFactor <= 0 {
		return errors.Newf(errors.ConfigInvalid, "engine.timeoutFactor must be positive, got %g", c.Engine.TimeoutFactor)
	}
	if c.Engine.PollSeconds <= 0 {
		return errors.Newf(errors.ConfigInvalid, "engine.pollSeconds must be positive, got %d", c.Engine.PollSeconds)
	}
	if c.Score.MinFreq < 0 {
		return errors.Newf(errors.ConfigInvalid, "score.minFreq must not be negative, got %d", c.Score.MinFreq)
	}
	return nil
}
