package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans out log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to all non-nil handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	valid := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			valid = append(valid, h)
		}
	}
	return &MultiHandler{handlers: valid}
}

// Enabled returns true if any handler is enabled for the given level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to every enabled handler. A failing sink does not
// stop the others; their errors are joined.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// EpisodeAttrs returns the attributes of the running episode, or nothing
// between episodes.
type EpisodeAttrs func() []slog.Attr

// EpisodeHandler stamps every record with the running episode.
type EpisodeHandler struct {
	inner slog.Handler
	attrs EpisodeAttrs
}

// NewEpisodeHandler wraps inner.
func NewEpisodeHandler(inner slog.Handler, attrs EpisodeAttrs) *EpisodeHandler {
	return &EpisodeHandler{inner: inner, attrs: attrs}
}

func (h *EpisodeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *EpisodeHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs != nil {
		r.AddAttrs(h.attrs()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *EpisodeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EpisodeHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

func (h *EpisodeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &EpisodeHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
