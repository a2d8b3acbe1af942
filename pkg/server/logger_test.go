package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-researcher/pkg/store"
)

func TestStoreLogHandlerPersistsRecords(t *testing.T) {
	st := store.NewMemoryStore()
	runID := uuid.New()
	logger := slog.New(NewStoreLogHandler(st, runID))

	logger.Info("Loop started", "loop", 2, "query", "go schedulers")
	logger.Error("Search failed", "error", "timeout")

	logs, err := st.ListLogs(context.Background(), runID)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("ListLogs() returned %d entries, want 2", len(logs))
	}

	if logs[0].Level != "INFO" || logs[0].Message != "Loop started" {
		t.Errorf("first entry = %q %q", logs[0].Level, logs[0].Message)
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("first entry has zero timestamp")
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(logs[0].Metadata, &meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if meta["query"] != "go schedulers" {
		t.Errorf("metadata query = %v, want %q", meta["query"], "go schedulers")
	}
	if meta["loop"] != float64(2) {
		t.Errorf("metadata loop = %v, want 2", meta["loop"])
	}

	if logs[1].Level != "ERROR" || logs[1].Message != "Search failed" {
		t.Errorf("second entry = %q %q", logs[1].Level, logs[1].Message)
	}
}

func TestStoreLogHandlerWithAttrs(t *testing.T) {
	st := store.NewMemoryStore()
	runID := uuid.New()

	base := slog.New(NewStoreLogHandler(st, runID))
	scoped := base.With("loop", 1)

	scoped.Info("Summarizing", "sources", 3)
	base.Info("Plain")

	logs, err := st.ListLogs(context.Background(), runID)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("ListLogs() returned %d entries, want 2", len(logs))
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(logs[0].Metadata, &meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if meta["loop"] != float64(1) || meta["sources"] != float64(3) {
		t.Errorf("scoped metadata = %v, want carried attrs", meta)
	}

	// The base logger must not inherit the scoped attrs.
	meta = map[string]interface{}{}
	if err := json.Unmarshal(logs[1].Metadata, &meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if _, ok := meta["loop"]; ok {
		t.Errorf("base metadata = %v, want no loop attr", meta)
	}
}
