package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-researcher/pkg/metrics"
)

// Engine drives one research run through the fixed loop:
// generate query -> search -> summarize -> reflect, repeated until the
// reflector signals stop or the loop bound is reached, then finalize
// and deliver. The engine owns its state for the duration of the run.
type Engine struct {
	Config Config
	State  *ResearchState
	LLM    llms.Model
	Search SearchProvider
	Logger *slog.Logger

	// Optional collaborators.
	Mailer        Mailer
	Archiver      Archiver
	OnStateUpdate func(state ResearchState)

	retryDelay time.Duration
}

func NewEngine(cfg Config, llm llms.Model, search SearchProvider) *Engine {
	return &Engine{
		Config:     cfg,
		State:      &ResearchState{},
		LLM:        llm,
		Search:     search,
		Logger:     slog.Default(),
		retryDelay: time.Second,
	}
}

func (e *Engine) emitState() {
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(*e.State)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// generateWithRetry calls the LLM and validates the response with the
// provided function, retrying up to 3 times with linear backoff.
// Think blocks are stripped from the response before validation.
func (e *Engine) generateWithRetry(ctx context.Context, phase string, prompts []llms.MessageContent, validator func(string) error, opts ...llms.CallOption) (string, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			e.Logger.Warn("Retrying LLM generation", "phase", phase, "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(e.retryDelay * time.Duration(i)):
			}
		}

		lctx, cancel := withTimeout(ctx, e.Config.LLMTimeout)
		start := time.Now()
		resp, err := e.LLM.GenerateContent(lctx, prompts, opts...)
		cancel()
		metrics.LLMDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.LLMRequests.WithLabelValues(phase, "error").Inc()
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			metrics.LLMRequests.WithLabelValues(phase, "error").Inc()
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := StripThinkBlocks(resp.Choices[0].Content)
		if err := validator(content); err != nil {
			metrics.LLMRequests.WithLabelValues(phase, "invalid").Inc()
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}

		metrics.LLMRequests.WithLabelValues(phase, "ok").Inc()
		return content, nil
	}

	return "", fmt.Errorf("%s failed after %d attempts: %w", phase, maxRetries, lastErr)
}

// Run executes the research loop for a topic and returns the final
// markdown report. When a mailer is configured the report is delivered
// before returning; delivery errors fail the run.
func (e *Engine) Run(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("research topic is empty")
	}

	e.State.Topic = topic
	e.Logger.Info("Starting research run", "topic", topic, "max_loops", e.Config.MaxLoops)
	e.emitState()

	query, err := e.generateQuery(ctx)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}
	e.State.LastQuery = query
	e.emitState()

	for {
		// 1. Retrieve
		docs := e.webResearch(ctx, query)
		e.State.LoopCount++
		e.State.Sources = append(e.State.Sources, docs...)
		e.Logger.Info("Retrieval complete", "loop", e.State.LoopCount, "new_sources", len(docs), "total_sources", len(e.State.Sources))
		e.emitState()

		if e.Archiver != nil && len(docs) > 0 {
			if err := e.Archiver.Archive(ctx, topic, docs); err != nil {
				e.Logger.Warn("Failed to archive sources", "error", err)
			}
		}

		// 2. Summarize
		if len(docs) > 0 {
			summary, err := e.summarize(ctx, docs)
			if err != nil {
				if e.State.RunningSummary == "" {
					return "", fmt.Errorf("summarization failed: %w", err)
				}
				e.Logger.Warn("Summarization failed, stopping with partial results", "error", err)
				break
			}
			e.State.RunningSummary = summary
			e.emitState()
		} else {
			e.Logger.Info("No new sources this iteration")
		}

		// 3. Reflect and route
		cont, next := e.reflect(ctx)
		if !cont {
			break
		}
		query = next
		e.State.LastQuery = next
		e.emitState()
	}

	return e.finalize(ctx)
}

// generateQuery turns the topic into the first web search query.
// Subsequent queries come from the reflector.
func (e *Engine) generateQuery(ctx context.Context) (string, error) {
	e.Logger.Info("Generating initial search query")

	system := fmt.Sprintf(queryWriterInstructions, e.State.Topic)

	var q searchQuery
	_, err := e.generateWithRetry(ctx, "generate_query", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, "Generate a query for web search:"),
	}, func(content string) error {
		parsed, err := parseSearchQuery(content)
		if err != nil {
			return err
		}
		q = parsed
		return nil
	}, llms.WithJSONMode(), llms.WithTemperature(0))
	if err != nil {
		return "", err
	}

	e.Logger.Info("Generated query", "query", q.Query, "aspect", q.Aspect)
	return q.Query, nil
}

// webResearch sends the query to the configured provider. Provider
// errors are recoverable: the iteration proceeds with no new sources.
func (e *Engine) webResearch(ctx context.Context, query string) []SourceDoc {
	e.Logger.Info("Searching", "provider", e.Search.Name(), "query", query)

	sctx, cancel := withTimeout(ctx, e.Config.SearchTimeout)
	defer cancel()

	start := time.Now()
	docs, err := e.Search.Search(sctx, query)
	metrics.SearchDuration.WithLabelValues(e.Search.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequests.WithLabelValues(e.Search.Name(), "error").Inc()
		e.Logger.Error("Search failed", "provider", e.Search.Name(), "error", err)
		return nil
	}
	metrics.SearchRequests.WithLabelValues(e.Search.Name(), "ok").Inc()
	return docs
}

// summarize merges the newly retrieved sources into the running summary.
func (e *Engine) summarize(ctx context.Context, newDocs []SourceDoc) (string, error) {
	e.Logger.Info("Summarizing sources", "count", len(newDocs))

	block := formatSourcesForPrompt(newDocs)

	var human string
	if e.State.RunningSummary != "" {
		human = fmt.Sprintf("<User Input>\n%s\n</User Input>\n\n<Existing Summary>\n%s\n</Existing Summary>\n\n<New Search Results>\n%s\n</New Search Results>",
			e.State.Topic, e.State.RunningSummary, block)
	} else {
		human = fmt.Sprintf("<User Input>\n%s\n</User Input>\n\n<Search Results>\n%s\n</Search Results>",
			e.State.Topic, block)
	}

	return e.generateWithRetry(ctx, "summarize", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarizerInstructions),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}, func(content string) error {
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("model returned an empty summary")
		}
		return nil
	}, llms.WithTemperature(0))
}

// reflect decides whether to continue. The loop bound is enforced here
// before the model is consulted, so the model can never extend a run
// past MaxLoops. Returns the follow-up query when continuing.
func (e *Engine) reflect(ctx context.Context) (bool, string) {
	if e.State.LoopCount >= e.Config.MaxLoops {
		e.Logger.Info("Loop bound reached", "loops", e.State.LoopCount, "max_loops", e.Config.MaxLoops)
		return false, ""
	}

	e.Logger.Info("Reflecting on summary")

	system := fmt.Sprintf(reflectionInstructions, e.State.Topic)
	human := "Identify a knowledge gap and generate a follow-up web search query based on our existing knowledge: " + e.State.RunningSummary

	var r reflection
	_, err := e.generateWithRetry(ctx, "reflect", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}, func(content string) error {
		parsed, err := parseReflection(content)
		if err != nil {
			return err
		}
		r = parsed
		return nil
	}, llms.WithJSONMode(), llms.WithTemperature(0))
	if err != nil {
		e.Logger.Warn("Reflection failed, stopping with partial results", "error", err)
		return false, ""
	}

	e.State.LastReflection = r.KnowledgeGap
	e.emitState()

	if r.IsSufficient {
		e.Logger.Info("Reflector signaled stop", "knowledge_gap", r.KnowledgeGap)
		return false, ""
	}

	next := strings.TrimSpace(r.FollowUpQuery)
	if next == "" {
		next = fallbackQuery(e.State.Topic)
	}
	e.Logger.Info("Continuing research", "knowledge_gap", r.KnowledgeGap, "follow_up_query", next)
	return true, next
}

// finalize formats the report and dispatches it through the mailer.
// It runs exactly once per run, after the loop has stopped.
func (e *Engine) finalize(ctx context.Context) (string, error) {
	report := buildReport(e.State)
	e.Logger.Info("Report compiled", "sources", len(e.State.Sources), "length", len(report))

	if e.Mailer == nil {
		e.Logger.Info("Mail delivery not configured, skipping")
		return report, nil
	}

	subject := "Research Summary: " + e.State.Topic

	mctx, cancel := withTimeout(ctx, e.Config.MailTimeout)
	defer cancel()

	if err := e.Mailer.Send(mctx, subject, report); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		return "", fmt.Errorf("report delivery failed: %w", err)
	}
	metrics.EmailsSent.WithLabelValues("ok").Inc()

	e.Logger.Info("Report delivered", "subject", subject)
	return report, nil
}
