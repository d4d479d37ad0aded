package utilities

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("bogus"))
}

func TestInit_WithRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "identity.log")
	lg, err := Init(Config{Level: "debug", File: file, MaxAgeDays: 1})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()
	assert.True(t, lg.Core().Enabled(zapcore.DebugLevel))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_MAX_AGE_DAYS", "14")
	cfg := ConfigFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Dev)
	assert.Equal(t, 14, cfg.MaxAgeDays)
}
