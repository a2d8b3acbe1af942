package research

import (
	"context"
	"time"
)

// Config holds the loop parameters for a single research run. It is
// built once from the process configuration and never mutated.
type Config struct {
	MaxLoops      int
	LLMTimeout    time.Duration
	SearchTimeout time.Duration
	MailTimeout   time.Duration
}

// SourceDoc is a single retrieved source. Immutable once created by a
// search provider; appended to the state, never removed.
type SourceDoc struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	ContentExcerpt string    `json:"content_excerpt"`
	RawContent     string    `json:"raw_content,omitempty"`
	RetrievedAt    time.Time `json:"retrieved_at"`
}

// ResearchState tracks the progress of one research run. It is owned
// exclusively by the engine for the duration of the run and discarded
// after the finalizer consumes it.
type ResearchState struct {
	Topic          string      `json:"topic"`
	LoopCount      int         `json:"loop_count"`
	RunningSummary string      `json:"running_summary"`
	Sources        []SourceDoc `json:"sources"`
	LastQuery      string      `json:"last_query"`
	LastReflection string      `json:"last_reflection"`
}

// SearchProvider retrieves sources for a query from a web search
// backend. Implementations live in pkg/search.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string) ([]SourceDoc, error)
}

// Mailer delivers the final report. A nil Mailer on the engine
// disables delivery.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// Archiver indexes retrieved sources for later lookup. Archive errors
// never fail a run; the engine only logs them.
type Archiver interface {
	Archive(ctx context.Context, topic string, docs []SourceDoc) error
}
