package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/hashit/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"":        slog.LevelWarn,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)

		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseLevel_unknown(t *testing.T) {
	t.Parallel()

	_, err := logging.ParseLevel("chatty")

	require.ErrorIs(t, err, logging.ErrLevel)
}

func TestNew_json_format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lg, err := logging.New(&buf, "info", "json")
	require.NoError(t, err)

	lg.Info("checked", "key", "out.digest")
	lg.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "checked", rec["msg"])
	assert.Equal(t, "out.digest", rec["key"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_text_format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lg, err := logging.New(&buf, "debug", "text")
	require.NoError(t, err)

	lg.Debug("visible", "n", 1)

	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "n=1")
}

func TestNew_unknown_format(t *testing.T) {
	t.Parallel()

	_, err := logging.New(&bytes.Buffer{}, "info", "xml")

	require.ErrorIs(t, err, logging.ErrFormat)
}

func TestNew_env_fallback(t *testing.T) {
	t.Setenv(logging.EnvLevel, "error")
	t.Setenv(logging.EnvFormat, "json")

	var buf bytes.Buffer

	lg, err := logging.New(&buf, "", "")
	require.NoError(t, err)

	lg.Warn("dropped")
	lg.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}
