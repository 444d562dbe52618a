package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor returns an attribute derived from the record's context,
// such as the request id.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extractor attributes to every record. Extractors
// run at Handle time, so loggers derived with With or WithGroup still see
// the request context.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
