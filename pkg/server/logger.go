package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-researcher/pkg/store"
)

// StoreLogHandler is a slog.Handler that persists records to the run
// store so a run's log trail can be queried over the API afterwards.
type StoreLogHandler struct {
	store store.RunStore
	runID uuid.UUID
	attrs []slog.Attr
}

func NewStoreLogHandler(st store.RunStore, runID uuid.UUID) *StoreLogHandler {
	return &StoreLogHandler{store: st, runID: runID}
}

func (h *StoreLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *StoreLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Background context so log rows survive request cancellation.
	return h.store.AppendLog(context.Background(), h.runID, store.LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metaJSON,
	})
}

func (h *StoreLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *StoreLogHandler) WithGroup(name string) slog.Handler {
	return h
}
