// Package store persists research runs, their logs, and recurring
// schedules. Two implementations exist: an in-memory store for
// development and a Postgres store for deployments.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is one research run from submission to report.
type Run struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    RunStatus       `json:"status"`
	Report    *string         `json:"report,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LogEntry is one structured log line captured during a run.
type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Schedule triggers a recurring research run on a cron expression.
type Schedule struct {
	ID        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	CronExpr  string    `json:"cron"`
	Recipient string    `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStore is the persistence surface the run service depends on.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus) error
	UpdateRunState(ctx context.Context, id uuid.UUID, state json.RawMessage) error
	CompleteRun(ctx context.Context, id uuid.UUID, report string) error

	AppendLog(ctx context.Context, runID uuid.UUID, entry LogEntry) error
	ListLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error)

	CreateSchedule(ctx context.Context, sched *Schedule) error
	ListSchedules(ctx context.Context) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
}
