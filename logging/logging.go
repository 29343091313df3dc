// Package logging wraps log/slog the way rcornwell/S370's util/logger
// package does: a handler that writes formatted lines to an optional file
// and mirrors warnings and above to stderr, so trouble still surfaces when
// no file writer is configured.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a slog.Handler that serializes to a single writer under a
// mutex (simulation logging is low-volume; a mutex is simpler than a
// channel-based sink) and always mirrors Warn/Error records to stderr.
type Handler struct {
	out io.Writer
	h   slog.Handler
	mu  *sync.Mutex
}

var _ slog.Handler = (*Handler)(nil)

// New returns a Handler writing to out (nil disables file output; stderr
// mirroring of warnings/errors always happens).
func New(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: slog.LevelInfo}
	}
	var inner slog.Handler
	if out != nil {
		inner = slog.NewTextHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(io.Discard, opts)
	}
	return &Handler{out: out, h: inner, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.h.Handle(ctx, r)
	if r.Level >= slog.LevelWarn {
		var b strings.Builder
		b.WriteString(r.Time.Format("2006/01/02 15:04:05"))
		b.WriteString(" ")
		b.WriteString(r.Level.String())
		b.WriteString(": ")
		b.WriteString(r.Message)
		b.WriteString("\n")
		_, _ = os.Stderr.Write([]byte(b.String()))
	}
	return err
}

// NewLogger is a convenience constructor returning a ready-to-use *slog.Logger.
func NewLogger(out io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(New(out, &slog.HandlerOptions{Level: level}))
}
