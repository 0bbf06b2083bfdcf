package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ipcscope/internal/config"
	"ipcscope/internal/server"
)

func TestNewRejectsInvalidLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"

	_, err := server.New(cfg)
	assert.Error(t, err)
}
