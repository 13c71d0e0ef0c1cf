// Package logx configures the process-wide structured log stream.
// Sessions replaying history attach their virtual clock so log lines
// carry the simulated timestamp of the scenario, not the wall time the
// replay happened to run.
package logx

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// New builds a logger writing JSON or text records at the given level.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Clock is the subset of the session clock the logger needs.
type Clock interface {
	Now() time.Time
}

// WithClock rewrites every record's timestamp from the given clock.
func WithClock(l *slog.Logger, c Clock) *slog.Logger {
	return slog.New(&clockHandler{inner: l.Handler(), clock: c})
}

type clockHandler struct {
	inner slog.Handler
	clock Clock
}

func (h *clockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *clockHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Time = h.clock.Now()
	return h.inner.Handle(ctx, r)
}

func (h *clockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &clockHandler{inner: h.inner.WithAttrs(attrs), clock: h.clock}
}

func (h *clockHandler) WithGroup(name string) slog.Handler {
	return &clockHandler{inner: h.inner.WithGroup(name), clock: h.clock}
}
