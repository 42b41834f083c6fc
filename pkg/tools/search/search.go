// Package search provides agent tools that look up music on streaming
// services, so the model can suggest listening beyond the local catalog.
package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chriscow/ambient-agents-go/pkg/agent"
)

// Result limits.
const (
	DefaultLimit = 5
	MaxLimit     = 10
)

// Query is the argument object shared by the search tools.
type Query struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Hit is one search result as reported to the model.
type Hit struct {
	Title     string   `json:"title"`
	Artists   []string `json:"artists,omitempty"`
	Album     string   `json:"album,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	Published string   `json:"published,omitempty"`
	URL       string   `json:"url"`
}

func parseQuery(raw json.RawMessage) (Query, error) {
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return q, fmt.Errorf("%w: %v", agent.ErrInvalidArguments, err)
	}
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return q, fmt.Errorf("%w: query is required", agent.ErrInvalidArguments)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

func queryParameters(service string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("Free-text %s search, e.g. an artist, mood or genre.", service),
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results.",
				"default":     DefaultLimit,
				"maximum":     MaxLimit,
			},
		},
		"required": []string{"query"},
	}
}

func encodeHits(hits []Hit) (string, error) {
	if len(hits) == 0 {
		return "No results found.", nil
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
