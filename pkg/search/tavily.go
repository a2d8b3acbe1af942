package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// TavilyProvider searches the web through the Tavily REST API. Results
// include the page's raw content so the summarizer can read past the
// snippet. Rate-limit responses are retried with doubling backoff.
type TavilyProvider struct {
	apiKey     string
	maxResults int
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

func NewTavilyProvider(apiKey string, maxResults int) *TavilyProvider {
	return &TavilyProvider{
		apiKey:     apiKey,
		maxResults: maxResults,
		baseURL:    defaultTavilyBaseURL,
		httpClient: &http.Client{},
		retryDelay: time.Second,
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent *string `json:"raw_content"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string) ([]research.SourceDoc, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:            p.apiKey,
		Query:             query,
		MaxResults:        p.maxResults,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tavily request: %w", err)
	}

	const maxAttempts = 4
	delay := p.retryDelay

	for attempt := 1; ; attempt++ {
		docs, retryable, err := p.doSearch(ctx, body)
		if err == nil {
			return docs, nil
		}
		if !retryable || attempt >= maxAttempts {
			return nil, err
		}

		slog.Warn("Tavily rate limited, backing off", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
}

func (p *TavilyProvider) doSearch(ctx context.Context, body []byte) ([]research.SourceDoc, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("tavily rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(b))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	now := time.Now().UTC()
	docs := make([]research.SourceDoc, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		raw := ""
		if r.RawContent != nil {
			raw = *r.RawContent
		}
		docs = append(docs, research.SourceDoc{
			URL:            r.URL,
			Title:          r.Title,
			ContentExcerpt: r.Content,
			RawContent:     raw,
			RetrievedAt:    now,
		})
	}
	return docs, false, nil
}
