package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHonorsLevel(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewDefaultUsesInfo(t *testing.T) {
	logger := NewDefault()

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
