package logger

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sailscrape/internal/config"
)

func TestInitWriter_jsonFields(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(config.Config{
		ServiceName: "sailscrape",
		InstanceID:  "test-1",
		LogLevel:    "debug",
	}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Str("sail_code", "SD2501").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "sailscrape", line["service"])
	require.Equal(t, "test-1", line["instance"])
	require.Equal(t, "SD2501", line["sail_code"])
	require.Equal(t, "hello", line["message"])
}

func TestInitWriter_levelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(config.Config{LogLevel: "warn"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestInitWriter_badLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(config.Config{LogLevel: "chatty"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Debug().Msg("dropped")
	log.Info().Msg("kept")
	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")
}
