package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-researcher/pkg/archive"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/metrics"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/store"
)

var (
	ErrEmptyTopic           = errors.New("research topic is empty")
	ErrMailNotConfigured    = errors.New("mail delivery is not configured")
	ErrArchiveNotConfigured = errors.New("source archive is not configured")
)

// MailerFactory returns a mailer addressed to the given recipient, or
// to the configured default when the argument is empty.
type MailerFactory func(recipient string) research.Mailer

// Service owns run lifecycle: it persists runs, executes them on
// background workers, and exposes lookups for the HTTP layer.
type Service struct {
	Store     store.RunStore
	Cfg       *config.Config
	LLM       llms.Model
	Search    research.SearchProvider
	NewMailer MailerFactory
	Archive   *archive.Archiver
}

func NewService(st store.RunStore, cfg *config.Config, llm llms.Model, search research.SearchProvider) *Service {
	return &Service{
		Store:  st,
		Cfg:    cfg,
		LLM:    llm,
		Search: search,
	}
}

type CreateRunRequest struct {
	Topic    string `json:"topic" binding:"required"`
	MaxLoops int    `json:"max_loops,omitempty"`
	Email    string `json:"email,omitempty"`
}

// StartRun persists a pending run and launches its worker.
func (s *Service) StartRun(ctx context.Context, req CreateRunRequest) (*store.Run, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if req.Email != "" && s.NewMailer == nil {
		return nil, ErrMailNotConfigured
	}

	maxLoops := s.Cfg.MaxLoops
	if req.MaxLoops > 0 {
		maxLoops = req.MaxLoops
	}

	configJSON, _ := json.Marshal(map[string]interface{}{
		"max_loops":  maxLoops,
		"search_api": s.Search.Name(),
		"email":      req.Email,
	})

	run := &store.Run{
		ID:     uuid.New(),
		Topic:  topic,
		Status: store.StatusPending,
		Config: configJSON,
	}
	if err := s.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	// Start background worker
	go s.runWorker(run.ID, topic, maxLoops, req.Email)

	return run, nil
}

// StartScheduled adapts StartRun for the cron scheduler.
func (s *Service) StartScheduled(topic, recipient string) {
	req := CreateRunRequest{Topic: topic, Email: recipient}
	if _, err := s.StartRun(context.Background(), req); err != nil {
		slog.Error("Failed to start scheduled run", "topic", topic, "error", err)
	}
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	return s.Store.GetRun(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	return s.Store.ListRuns(ctx, limit)
}

func (s *Service) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]store.LogEntry, error) {
	return s.Store.ListLogs(ctx, runID)
}

// SearchArchive queries the embedded source archive.
func (s *Service) SearchArchive(ctx context.Context, query string, topK int, topic string) ([]archive.Match, error) {
	if s.Archive == nil {
		return nil, ErrArchiveNotConfigured
	}
	return s.Archive.Search(ctx, query, topK, topic)
}

func (s *Service) runWorker(runID uuid.UUID, topic string, maxLoops int, recipient string) {
	ctx := context.Background()

	if err := s.Store.UpdateRunStatus(ctx, runID, store.StatusRunning); err != nil {
		slog.Error("Failed to mark run running", "run_id", runID, "error", err)
	}

	// Run logs go to the store so they are queryable per run.
	runLogger := slog.New(NewStoreLogHandler(s.Store, runID))

	engineCfg := research.Config{
		MaxLoops:      maxLoops,
		LLMTimeout:    s.Cfg.LLMTimeout,
		SearchTimeout: s.Cfg.SearchTimeout,
		MailTimeout:   s.Cfg.MailTimeout,
	}

	engine := research.NewEngine(engineCfg, s.LLM, s.Search)
	engine.Logger = runLogger
	if s.Archive != nil {
		engine.Archiver = s.Archive
	}
	if s.NewMailer != nil {
		engine.Mailer = s.NewMailer(recipient)
	}

	// Hook for state persistence
	engine.OnStateUpdate = func(state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			runLogger.Error("Failed to marshal state", "error", err)
			return
		}
		if err := s.Store.UpdateRunState(context.Background(), runID, stateJSON); err != nil {
			runLogger.Error("Failed to save state", "error", err)
		}
	}

	report, err := engine.Run(ctx, topic)
	if err != nil {
		s.failRun(ctx, runID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	if err := s.Store.CompleteRun(ctx, runID, report); err != nil {
		runLogger.Error("Failed to save final report", "error", err)
		return
	}
	metrics.RunsTotal.WithLabelValues(string(store.StatusCompleted)).Inc()
}

func (s *Service) failRun(ctx context.Context, runID uuid.UUID, reason string) {
	runLogger := slog.New(NewStoreLogHandler(s.Store, runID))
	runLogger.Error(reason)

	if err := s.Store.UpdateRunStatus(ctx, runID, store.StatusFailed); err != nil {
		slog.Error("Failed to mark run failed", "run_id", runID, "error", err)
	}
	metrics.RunsTotal.WithLabelValues(string(store.StatusFailed)).Inc()
}
