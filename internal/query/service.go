// Package query is the read-only view over the document index.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"critique-backend/internal/index"
	"critique-backend/internal/programs"
	"critique-backend/internal/records"
)

// Service answers read queries against the index.
type Service struct {
	Index index.Index
}

// NewService constructs a Service.
func NewService(idx index.Index) *Service {
	return &Service{Index: idx}
}

// Collections lists the known collection names.
func (s *Service) Collections() []string {
	return s.Index.Collections()
}

// List returns the sources of up to size documents in collection.
func (s *Service) List(ctx context.Context, collection string, size int) ([]json.RawMessage, error) {
	return s.list(ctx, collection, index.Filter{Limit: size})
}

// CritiquesByProgram returns critiques for one program. Unknown programs have none.
func (s *Service) CritiquesByProgram(ctx context.Context, program string, size int) ([]json.RawMessage, error) {
	if !programs.Valid(program) {
		return []json.RawMessage{}, nil
	}
	return s.list(ctx, records.CritiquesIndex, index.Filter{
		Equals: map[string]string{"program": program},
		Limit:  size,
	})
}

// CritiquesByUser returns critiques submitted by one user handle.
func (s *Service) CritiquesByUser(ctx context.Context, userID string, size int) ([]json.RawMessage, error) {
	return s.list(ctx, records.CritiquesIndex, index.Filter{
		Equals: map[string]string{"user_id": userID},
		Limit:  size,
	})
}

// Search runs a full-text query over every collection, or only over collection when set.
func (s *Service) Search(ctx context.Context, query, collection string, size int) ([]index.Hit, error) {
	var collections []string
	if collection != "" {
		if !slices.Contains(s.Index.Collections(), collection) {
			return nil, fmt.Errorf("%w: %s", index.ErrUnknownCollection, collection)
		}
		collections = []string{collection}
	}
	return s.Index.Search(ctx, query, collections, size)
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, collection, id string) (index.Document, error) {
	return s.Index.Get(ctx, collection, id)
}

func (s *Service) list(ctx context.Context, collection string, filter index.Filter) ([]json.RawMessage, error) {
	docs, err := s.Index.List(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Source)
	}
	return out, nil
}
