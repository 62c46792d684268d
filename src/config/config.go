// Package config provides configuration management for rapport.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and RAPPORT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Analysis   AnalysisConfig   `yaml:"analysis"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Store      StoreConfig      `yaml:"store"`
	History    HistoryConfig    `yaml:"history"`
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	LLM        LLMConfig        `yaml:"llm"`
}

// AnalysisConfig bounds a single analysis run.
type AnalysisConfig struct {
	// MaxInputBytes is checked before any parsing.
	MaxInputBytes int64 `yaml:"max_input_bytes"`
}

// JobsConfig controls the asynchronous job manager.
type JobsConfig struct {
	// Concurrency is the number of workers. 1 processes jobs in FIFO order.
	Concurrency int `yaml:"concurrency"`
	// Brokers selects Redpanda when non-empty; otherwise an in-memory queue is used.
	Brokers []string `yaml:"brokers"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite", "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HistoryConfig controls report history retention.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
	// Path of a SQLite file; empty keeps history in memory.
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ExtractionConfig points at the external OCR/PDF text service.
type ExtractionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LLMConfig enables the optional polarity annotator.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	// BatchSize is the number of messages scored per request.
	BatchSize int `yaml:"batch_size"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Analysis: AnalysisConfig{MaxInputBytes: 50 << 20},
		Jobs:     JobsConfig{Concurrency: 1},
		Store:    StoreConfig{Driver: "memory"},
		History:  HistoryConfig{Capacity: 50},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Extraction: ExtractionConfig{Timeout: 60 * time.Second},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			BatchSize: 50,
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults,
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
// RAPPORT_CONFIG, when set, names a YAML file to read first.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("RAPPORT_CONFIG"))
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RAPPORT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RAPPORT_MAX_INPUT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RAPPORT_MAX_INPUT_BYTES: %w", err)
		}
		c.Analysis.MaxInputBytes = n
	}
	if v := os.Getenv("RAPPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAPPORT_WORKERS: %w", err)
		}
		c.Jobs.Concurrency = n
	}
	if v := os.Getenv("REDPANDA_BROKERS"); v != "" {
		c.Jobs.Brokers = splitList(v)
	}
	if v := os.Getenv("RAPPORT_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("RAPPORT_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("RAPPORT_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("RAPPORT_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAPPORT_HISTORY_CAPACITY: %w", err)
		}
		c.History.Capacity = n
	}
	if v := os.Getenv("RAPPORT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RAPPORT_EXTRACTION_ENDPOINT"); v != "" {
		c.Extraction.Endpoint = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("RAPPORT_LLM_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RAPPORT_LLM_ENABLED: %w", err)
		}
		c.LLM.Enabled = b
	}
	if v := os.Getenv("RAPPORT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Analysis.MaxInputBytes <= 0 {
		return errors.New("analysis.max_input_bytes must be positive")
	}
	if c.Jobs.Concurrency < 1 {
		return errors.New("jobs.concurrency must be at least 1")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.History.Capacity < 1 {
		return errors.New("history.capacity must be at least 1")
	}
	if c.LLM.Enabled {
		if c.LLM.APIKey == "" {
			return errors.New("OPENAI_API_KEY environment variable is required when llm.enabled is set")
		}
		if c.LLM.BatchSize < 1 {
			return errors.New("llm.batch_size must be at least 1")
		}
	}
	return nil
}

// Distributed reports whether jobs go through an external broker.
func (c *Config) Distributed() bool {
	return len(c.Jobs.Brokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
