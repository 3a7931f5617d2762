// ABOUTME: Runtime-adjustable level filter wrapped around the caller's slog handler
// ABOUTME: Lets Core.SetLogLevel change verbosity without rebuilding loggers

package lifecycle

import (
	"context"
	"log/slog"
	"math"
)

// levelInherit lets every record through to the wrapped handler, which then
// applies its own level.
const levelInherit = slog.Level(math.MinInt32)

type levelHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newLevelLogger(base *slog.Logger, level *slog.LevelVar) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.New(&levelHandler{level: level, inner: base.Handler()})
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.inner.Enabled(ctx, l)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}
