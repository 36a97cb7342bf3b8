// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"chatty", zerolog.InfoLevel, true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "parley.log")
	logger, closer, err := New(config.LogConfig{Level: "info", Format: "json", Path: path})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("chat_id", "7").Msg("selected")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug line must be filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "selected", entry["message"])
	assert.Equal(t, "7", entry["chat_id"])
	assert.Contains(t, entry, "time")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, closer, err := New(config.LogConfig{Level: "shout"})
	assert.Error(t, err)
	assert.NotNil(t, closer)
}

func TestApplyLevel_LowersAndRaises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.log")
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "json", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Info().Msg("before")
	require.NoError(t, ApplyLevel("debug"))
	logger.Debug().Msg("after")
	assert.Error(t, ApplyLevel("loud"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}
