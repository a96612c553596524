package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiHandlerFansOut(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	log := slog.New(h).With("component", "test")

	log.Debug("ignored click", "cell", 4)
	log.Info("session created")

	assert.Contains(t, debugBuf.String(), "ignored click")
	assert.Contains(t, debugBuf.String(), "session created")
	assert.NotContains(t, infoBuf.String(), "ignored click")
	assert.Contains(t, infoBuf.String(), "component=test")
}

func TestMultiHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMultiHandler(slog.NewTextHandler(&buf, nil))).WithGroup("game")

	log.Info("play", "cell", 2)
	assert.Contains(t, buf.String(), "game.cell=2")
}

func TestNewWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf)

	log.Debug("hidden")
	log.Info("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "source=")
}
