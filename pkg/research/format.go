package research

import (
	"fmt"
	"strings"
)

// maxTokensPerSource bounds how much raw source content is fed to the
// summarizer, at a rough estimate of four characters per token.
const maxTokensPerSource = 1000

// dedupeByURL keeps the first occurrence of each URL, preserving order.
func dedupeByURL(docs []SourceDoc) []SourceDoc {
	seen := make(map[string]bool, len(docs))
	unique := make([]SourceDoc, 0, len(docs))
	for _, d := range docs {
		if seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		unique = append(unique, d)
	}
	return unique
}

// referenceURLs returns the unique source URLs in first-appearance order.
func referenceURLs(docs []SourceDoc) []string {
	urls := make([]string, 0, len(docs))
	for _, d := range dedupeByURL(docs) {
		urls = append(urls, d.URL)
	}
	return urls
}

// truncateToTokens cuts s to roughly maxTokens tokens and marks the cut.
func truncateToTokens(s string, maxTokens int) string {
	charLimit := maxTokens * 4
	runes := []rune(s)
	if len(runes) <= charLimit {
		return s
	}
	return string(runes[:charLimit]) + "... [truncated]"
}

// formatSourcesForPrompt renders a batch of sources into the block the
// summarizer consumes. The batch is deduplicated by URL and raw content
// is bounded per source.
func formatSourcesForPrompt(docs []SourceDoc) string {
	var b strings.Builder
	b.WriteString("Sources:\n\n")
	for _, d := range dedupeByURL(docs) {
		fmt.Fprintf(&b, "Source %s:\n===\n", d.Title)
		fmt.Fprintf(&b, "URL: %s\n===\n", d.URL)
		fmt.Fprintf(&b, "Most relevant content from source: %s\n===\n", d.ContentExcerpt)
		if d.RawContent != "" {
			fmt.Fprintf(&b, "Full source content limited to %d tokens: %s\n\n",
				maxTokensPerSource, truncateToTokens(d.RawContent, maxTokensPerSource))
		}
	}
	return strings.TrimSpace(b.String())
}

// buildReport assembles the final markdown report: the running summary
// followed by a references section listing every unique source URL in
// order of first appearance.
func buildReport(state *ResearchState) string {
	var refs strings.Builder
	for _, d := range dedupeByURL(state.Sources) {
		fmt.Fprintf(&refs, "* %s : %s\n", d.Title, d.URL)
	}
	return fmt.Sprintf("## Summary\n\n%s\n\n### Sources:\n%s",
		strings.TrimSpace(state.RunningSummary), strings.TrimRight(refs.String(), "\n"))
}
