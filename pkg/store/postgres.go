package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-researcher/pkg/database"
)

// PostgresStore persists runs through the shared connection pool.
type PostgresStore struct {
	db *database.PostgresDB
}

func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO research_runs (id, topic, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.db.Pool.QueryRow(ctx, query, run.ID, run.Topic, run.Status, run.Config).Scan(
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, topic, status, report, state, config, created_at, updated_at
		FROM research_runs
		WHERE id = $1
	`
	run := &Run{}
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Topic, &run.Status, &run.Report, &run.State, &run.Config, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, topic, status, report, state, config, created_at, updated_at
		FROM research_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Topic, &run.Status, &run.Report, &run.State, &run.Config, &run.CreatedAt, &run.UpdatedAt); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus) error {
	tag, err := s.db.Pool.Exec(ctx,
		"UPDATE research_runs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, id uuid.UUID, state json.RawMessage) error {
	tag, err := s.db.Pool.Exec(ctx,
		"UPDATE research_runs SET state = $2, updated_at = NOW() WHERE id = $1", id, state)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id uuid.UUID, report string) error {
	tag, err := s.db.Pool.Exec(ctx,
		"UPDATE research_runs SET status = $2, report = $3, updated_at = NOW() WHERE id = $1",
		id, StatusCompleted, report)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, runID uuid.UUID, entry LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Pool.Exec(ctx,
		"INSERT INTO research_run_logs (run_id, timestamp, level, message, metadata) VALUES ($1, $2, $3, $4, $5)",
		runID, entry.Timestamp, entry.Level, entry.Message, entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_run_logs
		WHERE run_id = $1
		ORDER BY id ASC
	`
	rows, err := s.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) CreateSchedule(ctx context.Context, sched *Schedule) error {
	query := `
		INSERT INTO research_schedules (id, topic, cron_expr, recipient)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := s.db.Pool.QueryRow(ctx, query, sched.ID, sched.Topic, sched.CronExpr, sched.Recipient).Scan(
		&sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	query := `
		SELECT id, topic, cron_expr, recipient, created_at
		FROM research_schedules
		ORDER BY created_at ASC
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var sched Schedule
		if err := rows.Scan(&sched.ID, &sched.Topic, &sched.CronExpr, &sched.Recipient, &sched.CreatedAt); err != nil {
			continue
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, "DELETE FROM research_schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
