package utilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestIDGenerator_Unique(t *testing.T) {
	g := NewIDGenerator(7)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIDGenerator_FallsBackToKSUID(t *testing.T) {
	// snowflake nodes are limited to 10 bits
	g := NewIDGenerator(5000)
	assert.Len(t, g.Next(), 27)

	var nilGen *IDGenerator
	assert.Len(t, nilGen.Next(), 27)
}

func TestNodeIDFromEnv(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "")
	assert.Equal(t, int64(1), NodeIDFromEnv())

	t.Setenv("SNOWFLAKE_NODE", "12")
	assert.Equal(t, int64(12), NodeIDFromEnv())

	t.Setenv("SNOWFLAKE_NODE", "abc")
	assert.Equal(t, int64(1), NodeIDFromEnv())
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("bogus"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	cfg := ConfigFromEnv()
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "warn")
	cfg = ConfigFromEnv()
	assert.False(t, cfg.Dev)
	assert.Equal(t, "warn", cfg.Level)
}

func TestInit_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "api.%Y%m%d.log")

	lg, err := Init(Config{Level: "info", File: pattern})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()

	matches, err := filepath.Glob(filepath.Join(dir, "api.*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
