package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_WritesJSONToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l.Info().Str("component", "test").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "error", Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true, Output: &buf})

	l.Info().Msg("pretty line")
	assert.Contains(t, buf.String(), "pretty line")
	assert.NotContains(t, buf.String(), `"message"`)
}
