package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

// ArxivProvider searches arXiv's Atom API. No key is required. The
// source URL prefers the PDF link and falls back to the abstract page.
type ArxivProvider struct {
	maxResults int
	baseURL    string
	httpClient *http.Client
}

func NewArxivProvider(maxResults int) *ArxivProvider {
	return &ArxivProvider{
		maxResults: maxResults,
		baseURL:    "https://export.arxiv.org",
		httpClient: &http.Client{},
	}
}

func (p *ArxivProvider) Name() string { return "arxiv" }

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Links     []arxivLink `xml:"link"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

func (p *ArxivProvider) Search(ctx context.Context, query string) ([]research.SourceDoc, error) {
	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(p.maxResults))
	params.Add("start", "0")

	apiURL := p.baseURL + "/api/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build arxiv request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("arxiv returned status %d: %s", resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	now := time.Now().UTC()
	docs := make([]research.SourceDoc, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		link := strings.TrimSpace(entry.ID)
		for _, l := range entry.Links {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}

		summary := strings.TrimSpace(entry.Summary)
		content := summary
		if pub := strings.TrimSpace(entry.Published); pub != "" {
			content = fmt.Sprintf("Published %s. %s", pub, summary)
		}

		docs = append(docs, research.SourceDoc{
			URL:            link,
			Title:          strings.TrimSpace(entry.Title),
			ContentExcerpt: content,
			RawContent:     summary,
			RetrievedAt:    now,
		})
	}
	return docs, nil
}
