package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newRun(topic string) *Run {
	return &Run{
		ID:     uuid.New(),
		Topic:  topic,
		Status: StatusPending,
		Config: json.RawMessage(`{"max_loops": 3}`),
	}
}

func TestMemoryStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := newRun("test topic")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreateRun() did not set CreatedAt")
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Topic != "test topic" || got.Status != StatusPending {
		t.Errorf("GetRun() = %+v, want created run", got)
	}

	if err := s.UpdateRunStatus(ctx, run.ID, StatusRunning); err != nil {
		t.Fatalf("UpdateRunStatus() error = %v", err)
	}

	state := json.RawMessage(`{"loop_count": 1}`)
	if err := s.UpdateRunState(ctx, run.ID, state); err != nil {
		t.Fatalf("UpdateRunState() error = %v", err)
	}

	if err := s.CompleteRun(ctx, run.ID, "## Summary\n\nDone."); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	got, err = s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() after complete error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Report == nil || *got.Report != "## Summary\n\nDone." {
		t.Errorf("Report = %v, want final report", got.Report)
	}
	if string(got.State) != `{"loop_count": 1}` {
		t.Errorf("State = %s, want persisted state", got.State)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want >= CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestMemoryStoreGetRunClones(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := newRun("topic")
	s.CreateRun(ctx, run)

	first, _ := s.GetRun(ctx, run.ID)
	first.Topic = "mutated"

	second, _ := s.GetRun(ctx, run.ID)
	if second.Topic != "topic" {
		t.Errorf("stored run mutated through returned pointer: Topic = %q", second.Topic)
	}
}

func TestMemoryStoreRunNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	missing := uuid.New()

	if _, err := s.GetRun(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateRunStatus(ctx, missing, StatusRunning); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRunStatus() error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateRunState(ctx, missing, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRunState() error = %v, want ErrNotFound", err)
	}
	if err := s.CompleteRun(ctx, missing, "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteRun() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListRuns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, topic := range []string{"first", "second", "third"} {
		s.CreateRun(ctx, newRun(topic))
		time.Sleep(time.Millisecond)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns() returned %d runs, want 3", len(runs))
	}
	// Newest first.
	if runs[0].Topic != "third" || runs[2].Topic != "first" {
		t.Errorf("ListRuns() order = [%s, %s, %s], want newest first",
			runs[0].Topic, runs[1].Topic, runs[2].Topic)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListRuns(2) returned %d runs, want 2", len(limited))
	}
	if limited[0].Topic != "third" {
		t.Errorf("ListRuns(2)[0].Topic = %q, want newest", limited[0].Topic)
	}
}

func TestMemoryStoreLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	runID := uuid.New()

	for _, msg := range []string{"starting", "searching", "done"} {
		if err := s.AppendLog(ctx, runID, LogEntry{Level: "INFO", Message: msg}); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	logs, err := s.ListLogs(ctx, runID)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("ListLogs() returned %d entries, want 3", len(logs))
	}
	for i, log := range logs {
		if log.ID != i+1 {
			t.Errorf("logs[%d].ID = %d, want %d", i, log.ID, i+1)
		}
		if log.Timestamp.IsZero() {
			t.Errorf("logs[%d].Timestamp is zero", i)
		}
	}
	if logs[0].Message != "starting" || logs[2].Message != "done" {
		t.Errorf("ListLogs() order = [%s, %s, %s], want append order",
			logs[0].Message, logs[1].Message, logs[2].Message)
	}

	other, err := s.ListLogs(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ListLogs() for unknown run error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ListLogs() for unknown run returned %d entries, want 0", len(other))
	}
}

func TestMemoryStoreSchedules(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := &Schedule{ID: uuid.New(), Topic: "daily news", CronExpr: "0 8 * * *"}
	second := &Schedule{ID: uuid.New(), Topic: "weekly digest", CronExpr: "0 9 * * 1", Recipient: "a@example.com"}

	if err := s.CreateSchedule(ctx, first); err != nil {
		t.Fatalf("CreateSchedule() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := s.CreateSchedule(ctx, second); err != nil {
		t.Fatalf("CreateSchedule() error = %v", err)
	}

	schedules, err := s.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules() error = %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("ListSchedules() returned %d schedules, want 2", len(schedules))
	}
	// Oldest first.
	if schedules[0].Topic != "daily news" || schedules[1].Topic != "weekly digest" {
		t.Errorf("ListSchedules() order = [%s, %s], want creation order",
			schedules[0].Topic, schedules[1].Topic)
	}
	if schedules[1].Recipient != "a@example.com" {
		t.Errorf("schedules[1].Recipient = %q, want recipient kept", schedules[1].Recipient)
	}

	if err := s.DeleteSchedule(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSchedule() error = %v", err)
	}
	schedules, _ = s.ListSchedules(ctx)
	if len(schedules) != 1 {
		t.Errorf("ListSchedules() after delete returned %d, want 1", len(schedules))
	}

	if err := s.DeleteSchedule(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSchedule() twice error = %v, want ErrNotFound", err)
	}
}
