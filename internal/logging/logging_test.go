package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/designpartner/internal/config"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prev, lvl := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(lvl)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupConsoleOnly(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	closer, err := Setup(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("session", "s1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "session=s1")
}

func TestSetupWritesRotatingFile(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "designpartner.log")

	closer, err := Setup(Options{Level: "debug", File: path, MaxSizeMB: 1, JSON: true, Console: &buf})
	require.NoError(t, err)

	log.Debug().Int("turn", 3).Msg("turn committed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "turn committed", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 3, entry["turn"])
	assert.Equal(t, line, strings.TrimSpace(buf.String()))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = "/tmp/x.log"
	cfg.LogJSON = true

	opts := FromConfig(cfg)
	assert.Equal(t, cfg.LogLevel, opts.Level)
	assert.Equal(t, "/tmp/x.log", opts.File)
	assert.Equal(t, cfg.LogMaxSizeMB, opts.MaxSizeMB)
	assert.True(t, opts.JSON)
	assert.Nil(t, opts.Console)
}
