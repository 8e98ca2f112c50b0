package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestHandlerColorsByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Error("boom")
	assert.Contains(t, buf.String(), ansiRed)

	buf.Reset()
	log.Warn("careful")
	assert.Contains(t, buf.String(), ansiYellow)

	buf.Reset()
	log.Info("Persisting nodes", "count", 3)
	out := buf.String()
	assert.Contains(t, out, ansiGreen)
	assert.Contains(t, out, "count=3")
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil)).With("index", "docs").WithGroup("search")

	log.Info("done", "hits", 2)
	out := buf.String()
	assert.Contains(t, out, "index=docs")
	assert.Contains(t, out, "search.hits=2")
}
