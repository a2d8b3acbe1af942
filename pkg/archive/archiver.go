// Package archive persists retrieved sources as embedded chunks so
// past research stays searchable after a run completes.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/splitter"
	"github.com/mikeboe/deep-researcher/pkg/vectorstore"
)

// Embedder is the embedding surface the archiver needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore is the vector store surface the archiver needs.
type DocumentStore interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, topicFilter string) ([]vectorstore.SimilaritySearchResult, error)
}

// Archiver chunks, embeds, and stores source content under its topic.
type Archiver struct {
	embedder Embedder
	store    DocumentStore
	splitter *splitter.TextSplitter
	logger   *slog.Logger
}

func New(embedder Embedder, store DocumentStore, split *splitter.TextSplitter) *Archiver {
	return &Archiver{
		embedder: embedder,
		store:    store,
		splitter: split,
		logger:   slog.Default(),
	}
}

// Archive stores every source in the batch. Sources without content
// are skipped; the raw page content is preferred over the excerpt.
func (a *Archiver) Archive(ctx context.Context, topic string, docs []research.SourceDoc) error {
	var batch []vectorstore.Document

	for _, doc := range docs {
		content := doc.RawContent
		if content == "" {
			content = doc.ContentExcerpt
		}
		if content == "" {
			continue
		}

		chunks, err := a.splitter.SplitText(content)
		if err != nil {
			return fmt.Errorf("failed to split source %s: %w", doc.URL, err)
		}
		if len(chunks) == 0 {
			continue
		}

		vectors, err := a.embedder.EmbedTexts(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to embed source %s: %w", doc.URL, err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}

		for i, chunk := range chunks {
			batch = append(batch, vectorstore.Document{
				Content: chunk,
				Metadata: map[string]interface{}{
					"topic":        topic,
					"url":          doc.URL,
					"title":        doc.Title,
					"retrieved_at": doc.RetrievedAt.UTC().Format(time.RFC3339),
				},
				Embedding: vectors[i],
			})
		}
	}

	if len(batch) == 0 {
		return nil
	}

	if err := a.store.AddDocuments(ctx, batch); err != nil {
		return fmt.Errorf("failed to store %d chunks: %w", len(batch), err)
	}

	a.logger.Info("Archived sources", "topic", topic, "sources", len(docs), "chunks", len(batch))
	return nil
}

// Match is one archive search hit.
type Match struct {
	Content string  `json:"content"`
	Topic   string  `json:"topic"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Search embeds the query and returns the nearest archived chunks,
// optionally restricted to one topic.
func (a *Archiver) Search(ctx context.Context, query string, topK int, topicFilter string) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	vec, err := a.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := a.store.SimilaritySearch(ctx, vec, topK, topicFilter)
	if err != nil {
		return nil, fmt.Errorf("archive search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Content: r.Document.Content, Score: r.Score}
		if v, ok := r.Document.Metadata["topic"].(string); ok {
			m.Topic = v
		}
		if v, ok := r.Document.Metadata["url"].(string); ok {
			m.URL = v
		}
		if v, ok := r.Document.Metadata["title"].(string); ok {
			m.Title = v
		}
		matches = append(matches, m)
	}
	return matches, nil
}
