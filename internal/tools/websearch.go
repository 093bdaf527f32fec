package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/config"
)

const (
	defaultSearchEndpoint = "https://api.duckduckgo.com/"
	defaultMaxResults     = 5
	searchUserAgent       = "Mozilla/5.0 (compatible; parley/1.0)"
)

// WebSearchInput describes the search_web tool's arguments.
type WebSearchInput struct {
	Query      string `json:"query" jsonschema_description:"Search query string."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return (default 5)."`
}

var webSearchSchema = GenerateSchema[WebSearchInput]()

// WebSearch answers queries through the DuckDuckGo Instant Answer API.
type WebSearch struct {
	endpoint   string
	maxResults int
	client     *http.Client
}

// NewWebSearch creates the search_web tool from configuration, filling in
// defaults for any unset fields.
func NewWebSearch(cfg config.SearchConfig) *WebSearch {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebSearch{
		endpoint:   endpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
	}
}

func (w *WebSearch) Name() string {
	return "search_web"
}

func (w *WebSearch) Description() string {
	return "Search the web for information using DuckDuckGo. Returns relevant search results and snippets."
}

func (w *WebSearch) InputSchema() json.RawMessage {
	return webSearchSchema
}

func (w *WebSearch) RequiredParameters() []string {
	return []string{"query"}
}

// Invoke queries the instant answer API and formats the abstract plus
// related topics as a numbered result list.
func (w *WebSearch) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	maxResults, err := intArg(args, "max_results", w.maxResults)
	if err != nil {
		return "", err
	}
	if maxResults <= 0 {
		maxResults = w.maxResults
	}

	answer, err := w.fetch(ctx, query)
	if err != nil {
		return "", err
	}

	results := collectResults(answer, maxResults)
	if len(results) == 0 {
		return "No search results found for the given query.", nil
	}
	return formatSearchResults(query, results), nil
}

type searchResult struct {
	Title   string
	Snippet string
	URL     string
	Source  string
}

type duckduckgoResponse struct {
	Heading        string            `json:"Heading"`
	Abstract       string            `json:"Abstract"`
	AbstractURL    string            `json:"AbstractURL"`
	AbstractSource string            `json:"AbstractSource"`
	RelatedTopics  []duckduckgoTopic `json:"RelatedTopics"`
}

// duckduckgoTopic is either a result (Text plus FirstURL) or a category
// grouping more topics under Topics.
type duckduckgoTopic struct {
	Text     string            `json:"Text"`
	FirstURL string            `json:"FirstURL"`
	Topics   []duckduckgoTopic `json:"Topics"`
}

func (w *WebSearch) fetch(ctx context.Context, query string) (*duckduckgoResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request returned status %d", resp.StatusCode)
	}

	var answer duckduckgoResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &answer, nil
}

// collectResults turns an instant answer into a flat result list, abstract
// first, then related topics up to max.
func collectResults(answer *duckduckgoResponse, max int) []searchResult {
	var results []searchResult

	if answer.Abstract != "" {
		title := answer.Heading
		if title == "" {
			title = answer.AbstractSource
		}
		source := answer.AbstractSource
		if source == "" {
			source = "DuckDuckGo Instant Answer"
		}
		results = append(results, searchResult{
			Title:   title,
			Snippet: answer.Abstract,
			URL:     answer.AbstractURL,
			Source:  source,
		})
	}

	results = collectTopics(answer.RelatedTopics, results, max)
	if len(results) > max {
		results = results[:max]
	}
	return results
}

func collectTopics(topics []duckduckgoTopic, results []searchResult, max int) []searchResult {
	for _, topic := range topics {
		if len(results) >= max {
			break
		}
		if len(topic.Topics) > 0 {
			results = collectTopics(topic.Topics, results, max)
			continue
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, searchResult{
			Title:   topicTitle(topic.Text),
			Snippet: topic.Text,
			URL:     topic.FirstURL,
			Source:  "DuckDuckGo",
		})
	}
	return results
}

// topicTitle takes the part of the topic text before the first " - "
// separator, which is how the API prefixes topic names.
func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	return text
}

func formatSearchResults(query string, results []searchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		}
		fmt.Fprintf(&b, "   Source: %s\n", r.Source)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
