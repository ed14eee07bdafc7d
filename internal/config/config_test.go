package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDACTOR_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Zero(t, cfg.FuzzyLevel)
	assert.Empty(t, cfg.EntityTypes)
	assert.Empty(t, cfg.AnalyzerURL)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoadFromEnv(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("REDACTOR_DATA_DIR", dataDir)
	t.Setenv("REDACTOR_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("REDACTOR_FUZZY_LEVEL", "2")
	t.Setenv("REDACTOR_ENTITY_TYPES", "EMAIL_ADDRESS, PERSON ,")
	t.Setenv("REDACTOR_ANALYZER_URL", "http://localhost:5002")
	t.Setenv("REDACTOR_LOG_LEVEL", "debug")
	t.Setenv("REDACTOR_OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, 2, cfg.FuzzyLevel)
	assert.Equal(t, []string{"EMAIL_ADDRESS", "PERSON"}, cfg.EntityTypes)
	assert.Equal(t, "http://localhost:5002", cfg.AnalyzerURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoadCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "state")
	t.Setenv("REDACTOR_DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.DirExists(t, dataDir)
}

func TestSessionDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/redactor"}
	assert.Equal(t, filepath.Join("/var/lib/redactor", "sessions.db"), cfg.SessionDBPath())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,, "))
}
