package research

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const queryWriterInstructions = `Your goal is to generate a targeted web search query.

The query will gather information related to a specific topic.

Topic:
%s

Return your query as a JSON object:
{
    "query": "string",
    "aspect": "string",
    "rationale": "string"
}`

const summarizerInstructions = `Your goal is to generate a high-quality summary of the web search results.

When EXTENDING an existing summary:
1. Seamlessly integrate new information without repeating what's already covered
2. Maintain consistency with the existing content's style and depth
3. Only add new, non-redundant information

When creating a NEW summary:
1. Highlight the most relevant information from each source
2. Provide a concise overview of the key points related to the topic
3. Emphasize significant findings or insights

In both cases:
- Cite sources inline by appending their URL in square brackets after the claim they support
- Focus on factual, objective information
- Avoid redundancy and repetition
- DO NOT use phrases like "based on the new results" or "according to additional sources"
- DO NOT add a References or Works Cited section
- Start directly with the summary, without preamble or closing commentary`

const reflectionInstructions = `You are an expert research assistant analyzing a summary about %s.

Your tasks:
1. Identify knowledge gaps or areas that need deeper exploration
2. Generate a follow-up question that would help expand understanding
3. Decide whether the summary already covers the topic well enough to stop

Ensure the follow-up query is self-contained and includes the context needed for a web search.

Return your analysis as a JSON object:
{
    "knowledge_gap": "string",
    "follow_up_query": "string",
    "is_sufficient": boolean
}`

// searchQuery is the JSON shape returned by the query writer.
type searchQuery struct {
	Query     string `json:"query"`
	Aspect    string `json:"aspect"`
	Rationale string `json:"rationale"`
}

// reflection is the JSON shape returned by the reflector.
type reflection struct {
	KnowledgeGap  string `json:"knowledge_gap"`
	FollowUpQuery string `json:"follow_up_query"`
	IsSufficient  bool   `json:"is_sufficient"`
}

var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkBlocks removes <think>...</think> sections that local
// reasoning models emit before their answer.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

func parseSearchQuery(content string) (searchQuery, error) {
	var q searchQuery
	if err := json.Unmarshal([]byte(content), &q); err != nil {
		return q, fmt.Errorf("query json parse error: %w", err)
	}
	if strings.TrimSpace(q.Query) == "" {
		return q, fmt.Errorf("model returned an empty query")
	}
	return q, nil
}

func parseReflection(content string) (reflection, error) {
	var r reflection
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return r, fmt.Errorf("reflection json parse error: %w", err)
	}
	return r, nil
}

// fallbackQuery is used when the reflector wants to continue but did
// not produce a usable follow-up query.
func fallbackQuery(topic string) string {
	return fmt.Sprintf("Tell me more about %s", topic)
}
