// Package scheduler dispatches recurring research runs from cron
// expressions persisted in the run store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mikeboe/deep-researcher/pkg/store"
)

var ErrInvalidCron = errors.New("invalid cron expression")

// RunFunc starts a research run for a scheduled topic.
type RunFunc func(topic, recipient string)

type Scheduler struct {
	cron   *cron.Cron
	store  store.RunStore
	run    RunFunc
	logger *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

func New(st store.RunStore, run RunFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   st,
		run:     run,
		logger:  slog.Default(),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start loads persisted schedules and begins dispatching. A schedule
// that no longer parses is skipped, not fatal.
func (s *Scheduler) Start(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	for _, sched := range schedules {
		if err := s.register(sched); err != nil {
			s.logger.Warn("Skipping invalid schedule", "id", sched.ID, "cron", sched.CronExpr, "error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "schedules", len(s.entries))
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Add validates, persists, and registers a new schedule.
func (s *Scheduler) Add(ctx context.Context, topic, cronExpr, recipient string) (*store.Schedule, error) {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCron, cronExpr, err)
	}

	sched := &store.Schedule{
		ID:        uuid.New(),
		Topic:     topic,
		CronExpr:  cronExpr,
		Recipient: recipient,
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	if err := s.register(*sched); err != nil {
		return nil, err
	}

	s.logger.Info("Schedule added", "id", sched.ID, "topic", topic, "cron", cronExpr)
	return sched, nil
}

// Remove deletes a schedule and stops its dispatches.
func (s *Scheduler) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	return nil
}

// List returns the persisted schedules.
func (s *Scheduler) List(ctx context.Context) ([]store.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

func (s *Scheduler) register(sched store.Schedule) error {
	id, err := s.cron.AddFunc(sched.CronExpr, func() {
		s.logger.Info("Dispatching scheduled research", "schedule_id", sched.ID, "topic", sched.Topic)
		s.run(sched.Topic, sched.Recipient)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[sched.ID] = id
	s.mu.Unlock()
	return nil
}
