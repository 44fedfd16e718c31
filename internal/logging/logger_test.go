package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"":        zerolog.InfoLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Level = zerolog.WarnLevel

	logger := NewWithWriter(cfg, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("session", "7").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"session":"7"`)
	assert.Contains(t, out, `"message":"visible"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"

	ctx := WithContext(context.Background(), NewWithWriter(cfg, &buf))
	ctx = WithComponent(ctx, "server")
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"server"`)
}

func TestFromContext_NoLogger(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info().Msg("dropped")
}
