package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Writer: &buf, Component: "scheduler"})

	logger.Info("task spawned", "task", "blinker")

	assert.Contains(t, buf.String(), "task spawned")
	assert.Contains(t, buf.String(), "component=scheduler task=blinker")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Format: "JSON", Writer: &buf})

	logger.Info("task spawned", "task", "blinker")

	assert.Contains(t, buf.String(), `"msg":"task spawned"`)
	assert.Contains(t, buf.String(), `"task":"blinker"`)
	assert.NotContains(t, buf.String(), "component")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Writer: &buf})

	logger.Info("should not appear")
	logger.Warn("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestDiscardDropsErrors(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"debug+2", slog.LevelDebug + 2},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.input)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, "json", f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, "text", f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := Discard()
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
