// Package index is the searchable document store behind critics, critiques and game
// registrants. Documents are schema-less JSON objects grouped into collections.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnavailable wraps every backend failure; callers never see partial results.
	ErrUnavailable = errors.New("index unavailable")
	// ErrNotFound is returned by Get for a missing id.
	ErrNotFound = errors.New("document not found")
	// ErrUnknownCollection is returned for collection names the index was not built with.
	ErrUnknownCollection = errors.New("unknown collection")
)

const defaultLimit = 1000

// Document is one stored record.
type Document struct {
	Collection string          `json:"index"`
	ID         string          `json:"id"`
	Source     json.RawMessage `json:"source"`
}

// Hit is a search result with its relevance score.
type Hit struct {
	Collection string          `json:"index"`
	ID         string          `json:"id"`
	Score      float64         `json:"score"`
	Source     json.RawMessage `json:"source"`
}

// Filter restricts List to documents whose top-level fields equal the given values.
type Filter struct {
	Equals map[string]string
	Limit  int
}

// Index is the document store contract.
type Index interface {
	Upsert(ctx context.Context, collection, id string, source json.RawMessage) error
	Insert(ctx context.Context, collection string, source json.RawMessage) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Search(ctx context.Context, query string, collections []string, limit int) ([]Hit, error)
	Collections() []string
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// searchText flattens every string value of a document into one lowercase blob.
func searchText(source json.RawMessage) string {
	var v any
	if err := json.Unmarshal(source, &v); err != nil {
		return ""
	}
	var parts []string
	collectStrings(v, &parts)
	return strings.ToLower(strings.Join(parts, " "))
}

func collectStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		if t != "" {
			*out = append(*out, t)
		}
	case []any:
		for _, item := range t {
			collectStrings(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(t[k], out)
		}
	}
}
