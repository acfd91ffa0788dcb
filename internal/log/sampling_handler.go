package log

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// IterationKey is the attribute key that marks a record as part of a
// high-frequency iteration stream. Records carrying it are subject to
// sampling.
const IterationKey = "iteration"

// DefaultSampleInterval passes one in every 25 iteration records, turning a
// 200-iteration fit into 8 debug lines.
const DefaultSampleInterval = 25

// SamplingHandler wraps an slog.Handler and thins out high-frequency debug
// records. A debug record that carries the IterationKey attribute is passed
// through only when its ordinal within this handler is a multiple of the
// interval (the first such record always passes). All other records are
// forwarded untouched.
//
// Design decision: We use a handler wrapper rather than sampling at the call
// site because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. The estimator stays free of logging policy; it just reports progress
type SamplingHandler struct {
	// handler is the underlying slog handler that receives kept records.
	handler slog.Handler

	// interval is the sampling period for iteration records.
	interval int

	// mu guards seen. slog handlers must be safe for concurrent use since
	// batch runs log from multiple goroutines.
	mu   sync.Mutex
	seen int
}

// NewSamplingHandler creates a SamplingHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used. A non-positive
// interval falls back to DefaultSampleInterval.
func NewSamplingHandler(handler slog.Handler, interval int) *SamplingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &SamplingHandler{handler: handler, interval: interval}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle forwards the record unless it is a sampled-out iteration record.
func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelInfo && hasIterationAttr(r) {
		h.mu.Lock()
		ordinal := h.seen
		h.seen++
		h.mu.Unlock()

		if ordinal%h.interval != 0 {
			return nil
		}
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes added.
// The sampling counter is shared so attribute scoping does not reset it.
func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{parent: h, handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{parent: h, handler: h.handler.WithGroup(name)}
}

// derivedHandler keeps derived handlers (WithAttrs/WithGroup) counting
// against the parent's sampling state.
type derivedHandler struct {
	parent  *SamplingHandler
	handler slog.Handler
}

// Enabled delegates to the underlying handler.
func (d *derivedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.handler.Enabled(ctx, level)
}

// Handle applies the parent's sampling decision, then forwards.
func (d *derivedHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelInfo && hasIterationAttr(r) {
		d.parent.mu.Lock()
		ordinal := d.parent.seen
		d.parent.seen++
		d.parent.mu.Unlock()

		if ordinal%d.parent.interval != 0 {
			return nil
		}
	}
	return d.handler.Handle(ctx, r)
}

// WithAttrs returns a further derived handler sharing the same parent.
func (d *derivedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{parent: d.parent, handler: d.handler.WithAttrs(attrs)}
}

// WithGroup returns a further derived handler sharing the same parent.
func (d *derivedHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{parent: d.parent, handler: d.handler.WithGroup(name)}
}

// hasIterationAttr reports whether the record carries the IterationKey
// attribute at the top level.
func hasIterationAttr(r slog.Record) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == IterationKey {
			found = true
			return false
		}
		return true
	})
	return found
}

// NewLogger creates a *slog.Logger with iteration sampling over a text
// handler.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewSamplingHandler(textHandler, DefaultSampleInterval))
}
