package search

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

// YouTubeProvider searches YouTube through the Data API and attaches
// each video's caption track as the source content. Transcript
// retrieval is best effort with its own timeout; a video without an
// accessible transcript is still returned as a source.
type YouTubeProvider struct {
	service           *youtube.Service
	maxResults        int
	httpClient        *http.Client
	transcriptBaseURL string
	transcriptTimeout time.Duration
}

func NewYouTubeProvider(ctx context.Context, apiKey string, maxResults int, opts ...option.ClientOption) (*YouTubeProvider, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return &YouTubeProvider{
		service:           svc,
		maxResults:        maxResults,
		httpClient:        &http.Client{},
		transcriptBaseURL: "https://www.youtube.com",
		transcriptTimeout: 10 * time.Second,
	}, nil
}

func (p *YouTubeProvider) Name() string { return "youtube" }

func (p *YouTubeProvider) Search(ctx context.Context, query string) ([]research.SourceDoc, error) {
	resp, err := p.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(p.maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search failed: %w", err)
	}

	now := time.Now().UTC()
	docs := make([]research.SourceDoc, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}

		videoURL := "https://www.youtube.com/watch?v=" + item.Id.VideoId
		transcript := p.fetchTranscript(ctx, item.Id.VideoId)

		content := transcript
		if r := []rune(content); len(r) > 200 {
			content = string(r[:200]) + "..."
		}

		docs = append(docs, research.SourceDoc{
			URL:            videoURL,
			Title:          item.Snippet.Title,
			ContentExcerpt: content,
			RawContent:     transcript,
			RetrievedAt:    now,
		})
	}
	return docs, nil
}

// fetchTranscript pulls the English caption track from the timedtext
// endpoint. Failures never abort the search; they degrade to a
// placeholder string the summarizer can see.
func (p *YouTubeProvider) fetchTranscript(ctx context.Context, videoID string) string {
	tctx, cancel := context.WithTimeout(ctx, p.transcriptTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/timedtext?lang=en&v=%s", p.transcriptBaseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(tctx, http.MethodGet, u, nil)
	if err != nil {
		return "Transcript not available."
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "Transcript retrieval timed out."
		}
		return "Transcript not available."
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "Transcript not available."
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "Transcript not available."
	}

	transcript, err := parseTimedText(body)
	if err != nil || transcript == "" {
		return "Transcript not available."
	}
	return transcript
}

type timedTextDoc struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText flattens a timedtext XML document into a single
// space-joined transcript string.
func parseTimedText(data []byte) (string, error) {
	var doc timedTextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse timedtext: %w", err)
	}

	parts := make([]string, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Value))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
