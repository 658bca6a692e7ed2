package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// JobLogHandler is a slog.Handler that writes records to a job's log
type JobLogHandler struct {
	Store JobStore
	JobID uuid.UUID
	// Next, when set, also receives every record.
	Next slog.Handler

	attrs  []slog.Attr
	prefix string
}

func NewJobLogHandler(store JobStore, jobID uuid.UUID, next slog.Handler) *JobLogHandler {
	return &JobLogHandler{
		Store: store,
		JobID: jobID,
		Next:  next,
	}
}

func (h *JobLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *JobLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{})
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = attrValue(a.Value)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		_ = h.Next.Handle(ctx, r)
	}

	// Logs must persist even when the request context is gone.
	return h.Store.AppendLog(context.Background(), h.JobID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metaJSON,
	})
}

func (h *JobLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	if h.Next != nil {
		c.Next = h.Next.WithAttrs(attrs)
	}
	return &c
}

func (h *JobLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.Next != nil {
		c.Next = h.Next.WithGroup(name)
	}
	return &c
}

func attrValue(v slog.Value) interface{} {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}
