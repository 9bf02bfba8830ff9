package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestNewLoggerFansOutToFile(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "kantoku.log")

	logger, closeLog, err := newLogger(&stdout, "warn", path)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept", "owner_id", "chan-1")
	closeLog()

	assert.NotContains(t, stdout.String(), "dropped")
	assert.Contains(t, stdout.String(), `"msg":"kept"`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"owner_id":"chan-1"`)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, _, err := newLogger(&bytes.Buffer{}, "chatty", "")
	assert.Error(t, err)
}
