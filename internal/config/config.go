// Package config loads agora's settings.
//
// Sources are applied in order, each overriding the last:
//
//  1. Default()
//  2. a YAML file, when a path is given
//  3. .env files (never overriding variables already in the environment)
//  4. AGORA_* environment variables
//
// Command-line flags are applied by the caller after Load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/agora/internal/payload"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AGORA_"

// DefaultDotenv is the .env file read when none is named.
const DefaultDotenv = ".env"

const indexFile = "index.db"

// Config holds the settings of one agora store.
type Config struct {
	// Root is the store directory.
	Root string `yaml:"root" env:"ROOT"`

	// Index is the catalog database path. Empty means <root>/index.db.
	Index string `yaml:"index" env:"INDEX"`

	MaxDepth        int `yaml:"max_depth" env:"MAX_DEPTH"`
	MaxPayloadBytes int `yaml:"max_payload_bytes" env:"MAX_PAYLOAD_BYTES"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the built-in settings.
func Default() Config {
	limits := payload.DefaultLimits()
	return Config{
		Root:            ".agora",
		MaxDepth:        limits.MaxDepth,
		MaxPayloadBytes: limits.MaxBytes,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty), the named .env files (DefaultDotenv when none are
// named; missing files are ignored) and the process environment.
func Load(path string, dotenv ...string) (Config, error) {
	return load(path, dotenv, environ(os.Environ()))
}

func load(path string, dotenv []string, vars map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if len(dotenv) == 0 {
		dotenv = []string{DefaultDotenv}
	}
	for _, file := range dotenv {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			if _, set := vars[k]; !set {
				vars[k] = v
			}
		}
	}

	if err := env.Parse(&cfg, env.Options{Environment: vars, Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty file decodes to io.EOF and leaves the defaults.
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	return nil
}

func environ(kv []string) map[string]string {
	vars := make(map[string]string, len(kv))
	for _, pair := range kv {
		if k, v, ok := strings.Cut(pair, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("config: root is empty")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("config: max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("config: max_payload_bytes must be positive, got %d", c.MaxPayloadBytes)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// IndexPath returns the catalog database path.
func (c Config) IndexPath() string {
	if c.Index != "" {
		return c.Index
	}
	return filepath.Join(c.Root, indexFile)
}

// Limits returns the payload limits.
func (c Config) Limits() payload.Limits {
	return payload.Limits{MaxDepth: c.MaxDepth, MaxBytes: c.MaxPayloadBytes}
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return level, nil
}
