// Package config holds operator-level configuration for the redactor
// daemon: listen address, data directory, recognizer pattern file, fuzzy
// level, entity-type filter, and the optional remote analyzer endpoint.
//
// Values resolve from env vars with the REDACTOR_ prefix (e.g.
// REDACTOR_LISTEN_ADDR) or from a redactor.config.yaml file in the working
// directory, with env taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the REDACTOR_ prefix and to a
// YAML field in redactor.config.yaml.
const (
	KeyListenAddr  = "listen_addr"
	KeyDataDir     = "data_dir"
	KeyPatternFile = "pattern_file"
	KeyFuzzyLevel  = "fuzzy_level"
	KeyEntityTypes = "entity_types"
	KeyAnalyzerURL = "analyzer_url"
	KeyLogLevel    = "log_level"
	KeyOTelEnabled = "otel_enabled"
)

const (
	DefaultListenAddr = ":8321"
	DefaultLogLevel   = "info"
)

// Config is the resolved daemon configuration.
type Config struct {
	ListenAddr  string   // HTTP listen address
	DataDir     string   // Base directory for state (~/.redactor)
	PatternFile string   // Optional recognizer YAML layered over defaults
	FuzzyLevel  int      // Fuzzy consolidation level (0 = exact)
	EntityTypes []string // Optional entity-type whitelist
	AnalyzerURL string   // Optional remote analyzer endpoint
	LogLevel    string   // zerolog level name
	OTelEnabled bool     // Export traces to stdout
}

// SessionDBPath returns the full path to the session SQLite database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// Load resolves configuration from env vars and the optional config file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REDACTOR")
	v.AutomaticEnv()

	v.SetConfigName("redactor.config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyFuzzyLevel, 0)
	v.SetDefault(KeyOTelEnabled, false)

	dataDir := v.GetString(KeyDataDir)
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".redactor")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	return &Config{
		ListenAddr:  v.GetString(KeyListenAddr),
		DataDir:     dataDir,
		PatternFile: v.GetString(KeyPatternFile),
		FuzzyLevel:  v.GetInt(KeyFuzzyLevel),
		EntityTypes: splitList(v.GetString(KeyEntityTypes)),
		AnalyzerURL: v.GetString(KeyAnalyzerURL),
		LogLevel:    v.GetString(KeyLogLevel),
		OTelEnabled: v.GetBool(KeyOTelEnabled),
	}, nil
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
