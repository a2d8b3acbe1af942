package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps runs, logs, and schedules in process memory. It
// is the default store when no DATABASE_URL is configured; everything
// is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[uuid.UUID]*Run
	logs      map[uuid.UUID][]LogEntry
	schedules map[uuid.UUID]*Schedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[uuid.UUID]*Run),
		logs:      make(map[uuid.UUID][]LogEntry),
		schedules: make(map[uuid.UUID]*Schedule),
	}
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *run
	return &clone, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateRunState(ctx context.Context, id uuid.UUID, state json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.State = append(json.RawMessage(nil), state...)
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CompleteRun(ctx context.Context, id uuid.UUID, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.Status = StatusCompleted
	run.Report = &report
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendLog(ctx context.Context, runID uuid.UUID, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = len(s.logs[runID]) + 1
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.logs[runID] = append(s.logs[runID], entry)
	return nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]LogEntry, len(s.logs[runID]))
	copy(logs, s.logs[runID])
	return logs, nil
}

func (s *MemoryStore) CreateSchedule(ctx context.Context, sched *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched.CreatedAt = time.Now().UTC()
	stored := *sched
	s.schedules[sched.ID] = &stored
	return nil
}

func (s *MemoryStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		schedules = append(schedules, *sched)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].CreatedAt.Before(schedules[j].CreatedAt)
	})
	return schedules, nil
}

func (s *MemoryStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}
