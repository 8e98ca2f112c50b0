// Package logger provides the slog handler used across the project: a
// text handler with ANSI colors keyed on record level, plus green
// highlighting for persistence messages so ingest progress stands out
// in long runs.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// ColorHandler is a slog.Handler that writes human-readable lines with
// ANSI colors. Warnings render yellow, errors red, and info messages
// about persistence render green.
type ColorHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	opts  slog.HandlerOptions
	attrs []slog.Attr
	group string
}

// NewColorHandler creates a ColorHandler writing to out.
func NewColorHandler(out io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		mu:   &sync.Mutex{},
		out:  out,
		opts: *opts,
	}
}

// NewDefaultLogger creates a slog.Logger with a ColorHandler on
// stderr at the given level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a config string to a slog.Level, defaulting to
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func colorFor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return ansiRed
	case r.Level >= slog.LevelWarn:
		return ansiYellow
	case strings.Contains(strings.ToLower(r.Message), "persist"):
		return ansiGreen
	default:
		return ""
	}
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(r.Level.String())
	b.WriteString(" ")

	color := colorFor(r)
	if color != "" {
		b.WriteString(color)
	}
	b.WriteString(r.Message)
	if color != "" {
		b.WriteString(ansiReset)
	}

	for _, a := range h.attrs {
		if !a.Equal(slog.Attr{}) {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve().Any())
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve().Any())
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// WithAttrs implements slog.Handler. Keys are prefixed with the open
// group at the time the attr is added.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if name != "" {
		if clone.group != "" {
			clone.group += "." + name
		} else {
			clone.group = name
		}
	}
	return &clone
}
