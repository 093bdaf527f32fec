package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
)

func newTestSearch(t *testing.T, handler http.HandlerFunc) *WebSearch {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWebSearch(config.SearchConfig{
		Endpoint:       server.URL,
		MaxResults:     5,
		TimeoutSeconds: 5,
	})
}

func TestWebSearchMetadata(t *testing.T) {
	search := NewWebSearch(config.SearchConfig{})

	assert.Equal(t, "search_web", search.Name())
	assert.NotEmpty(t, search.Description())
	assert.Equal(t, []string{"query"}, search.RequiredParameters())
	assert.Contains(t, string(search.InputSchema()), "query")
}

func TestWebSearchDefaults(t *testing.T) {
	search := NewWebSearch(config.SearchConfig{})

	assert.Equal(t, defaultSearchEndpoint, search.endpoint)
	assert.Equal(t, defaultMaxResults, search.maxResults)
	assert.NotNil(t, search.client)
}

func TestWebSearchInvoke(t *testing.T) {
	var gotQuery, gotFormat, gotUA string
	search := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{
			"Heading": "Go (programming language)",
			"Abstract": "Go is a statically typed language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go",
			"AbstractSource": "Wikipedia",
			"RelatedTopics": [
				{"Text": "Goroutine - A lightweight thread.", "FirstURL": "https://example.com/goroutine"}
			]
		}`))
	})

	out, err := search.Invoke(context.Background(), map[string]any{"query": "golang"})
	require.NoError(t, err)

	assert.Equal(t, "golang", gotQuery)
	assert.Equal(t, "json", gotFormat)
	assert.NotEmpty(t, gotUA)

	assert.Contains(t, out, "Search results for 'golang':")
	assert.Contains(t, out, "1. Go (programming language)")
	assert.Contains(t, out, "Go is a statically typed language.")
	assert.Contains(t, out, "URL: https://en.wikipedia.org/wiki/Go")
	assert.Contains(t, out, "Source: Wikipedia")
	assert.Contains(t, out, "2. Goroutine")
	assert.Contains(t, out, "Source: DuckDuckGo")
}

func TestWebSearchNoResults(t *testing.T) {
	search := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Abstract": "", "RelatedTopics": []}`))
	})

	out, err := search.Invoke(context.Background(), map[string]any{"query": "zxqv"})
	require.NoError(t, err)
	assert.Equal(t, "No search results found for the given query.", out)
}

func TestWebSearchMaxResults(t *testing.T) {
	search := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"RelatedTopics": [
				{"Text": "One - first", "FirstURL": "https://example.com/1"},
				{"Text": "Two - second", "FirstURL": "https://example.com/2"},
				{"Text": "Three - third", "FirstURL": "https://example.com/3"}
			]
		}`))
	})

	out, err := search.Invoke(context.Background(), map[string]any{
		"query":       "numbers",
		"max_results": float64(2),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "1. One")
	assert.Contains(t, out, "2. Two")
	assert.NotContains(t, out, "Three")
}

func TestWebSearchNestedTopics(t *testing.T) {
	search := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"RelatedTopics": [
				{
					"Topics": [
						{"Text": "Nested - inside a category", "FirstURL": "https://example.com/nested"}
					]
				},
				{"Text": "Flat - at top level", "FirstURL": "https://example.com/flat"}
			]
		}`))
	})

	out, err := search.Invoke(context.Background(), map[string]any{"query": "topics"})
	require.NoError(t, err)
	assert.Contains(t, out, "1. Nested")
	assert.Contains(t, out, "2. Flat")
}

func TestWebSearchMissingQuery(t *testing.T) {
	search := NewWebSearch(config.SearchConfig{})

	_, err := search.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required parameter: query")
}

func TestWebSearchServerError(t *testing.T) {
	search := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := search.Invoke(context.Background(), map[string]any{"query": "golang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestTopicTitle(t *testing.T) {
	assert.Equal(t, "Goroutine", topicTitle("Goroutine - A lightweight thread."))
	assert.Equal(t, "plain text", topicTitle("plain text"))
}
