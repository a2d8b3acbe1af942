package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const (
	defaultPerplexityBaseURL = "https://api.perplexity.ai"
	perplexityModel          = "sonar-pro"
)

// PerplexityProvider searches through Perplexity's chat completions
// API. Each call yields one synthesized answer with a citation list;
// the first citation carries the full answer text and the remaining
// citations are returned as bare references.
type PerplexityProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	calls      atomic.Int64
}

func NewPerplexityProvider(apiKey string) *PerplexityProvider {
	return &PerplexityProvider{
		apiKey:     apiKey,
		baseURL:    defaultPerplexityBaseURL,
		httpClient: &http.Client{},
	}
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (p *PerplexityProvider) Search(ctx context.Context, query string) ([]research.SourceDoc, error) {
	call := p.calls.Add(1)

	body, err := json.Marshal(perplexityRequest{
		Model: perplexityModel,
		Messages: []perplexityMessage{
			{Role: "system", Content: "Search the web and provide factual information with sources."},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode perplexity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build perplexity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("perplexity returned status %d: %s", resp.StatusCode, string(b))
	}

	var parsed perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode perplexity response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("perplexity returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	citations := parsed.Citations
	if len(citations) == 0 {
		citations = []string{"https://perplexity.ai"}
	}

	now := time.Now().UTC()
	docs := []research.SourceDoc{{
		URL:            citations[0],
		Title:          fmt.Sprintf("Perplexity Search %d, Source 1", call),
		ContentExcerpt: content,
		RawContent:     content,
		RetrievedAt:    now,
	}}
	for i, citation := range citations[1:] {
		docs = append(docs, research.SourceDoc{
			URL:            citation,
			Title:          fmt.Sprintf("Perplexity Search %d, Source %d", call, i+2),
			ContentExcerpt: "See above for full content",
			RetrievedAt:    now,
		})
	}
	return docs, nil
}
