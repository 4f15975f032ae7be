package index

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestMemoryUpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("critics", "critiques")

	require.NoError(t, idx.Upsert(ctx, "critics", "alice", doc(t, map[string]any{"first_name": "Alice"})))
	require.NoError(t, idx.Upsert(ctx, "critics", "bob", doc(t, map[string]any{"first_name": "Bob"})))
	require.NoError(t, idx.Upsert(ctx, "critics", "alice", doc(t, map[string]any{"first_name": "Alicia"})))

	docs, err := idx.List(ctx, "critics", Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "alice", docs[0].ID)
	require.JSONEq(t, `{"first_name":"Alicia"}`, string(docs[0].Source))
	require.Equal(t, "bob", docs[1].ID)
}

func TestMemoryInsertAssignsFreshIDs(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("critiques")
	source := doc(t, map[string]any{"program": "Cooking Show"})

	first, err := idx.Insert(ctx, "critiques", source)
	require.NoError(t, err)
	second, err := idx.Insert(ctx, "critiques", source)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	got, err := idx.Get(ctx, "critiques", second)
	require.NoError(t, err)
	require.Equal(t, "critiques", got.Collection)
	require.JSONEq(t, string(source), string(got.Source))
}

func TestMemoryGetMissing(t *testing.T) {
	idx := NewMemoryIndex("critics")
	_, err := idx.Get(context.Background(), "critics", "nobody")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = idx.Get(context.Background(), "elsewhere", "nobody")
	require.ErrorIs(t, err, ErrUnknownCollection)
}

func TestMemoryListFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("critiques")
	for _, p := range []string{"Love Island", "Cooking Show", "Love Island", "Love Island"} {
		_, err := idx.Insert(ctx, "critiques", doc(t, map[string]any{"program": p, "user_id": "u1"}))
		require.NoError(t, err)
	}

	docs, err := idx.List(ctx, "critiques", Filter{Equals: map[string]string{"program": "Love Island"}})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	docs, err = idx.List(ctx, "critiques", Filter{Equals: map[string]string{"program": "Love Island"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = idx.List(ctx, "critiques", Filter{Equals: map[string]string{"program": "Unknown"}})
	require.NoError(t, err)
	require.NotNil(t, docs)
	require.Empty(t, docs)
}

func TestMemoryRejectsNonObject(t *testing.T) {
	idx := NewMemoryIndex("critics")
	err := idx.Upsert(context.Background(), "critics", "x", json.RawMessage(`[1,2]`))
	require.Error(t, err)
	require.Error(t, idx.Upsert(context.Background(), "critics", " ", json.RawMessage(`{}`)))
}

func TestMemorySearchRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("critics", "critiques")

	require.NoError(t, idx.Upsert(ctx, "critics", "u1", doc(t, map[string]any{"first_name": "Alice", "last_name": "Jones"})))
	_, err := idx.Insert(ctx, "critiques", doc(t, map[string]any{"text_content": "Great pasta, great sauce"}))
	require.NoError(t, err)
	_, err = idx.Insert(ctx, "critiques", doc(t, map[string]any{"text_content": "The pasta was cold"}))
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "great", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 2.0, hits[0].Score)

	hits, err = idx.Search(ctx, "pasta", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = idx.Search(ctx, "Jones", []string{"critiques"}, 0)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = idx.Search(ctx, "jon", []string{"critics"}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "u1", hits[0].ID)

	hits, err = idx.Search(ctx, "pasta", nil, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = idx.Search(ctx, "pasta", []string{"nope"}, 0)
	require.True(t, errors.Is(err, ErrUnknownCollection))
}

func TestMemoryHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := NewMemoryIndex("critics")
	require.ErrorIs(t, idx.Upsert(ctx, "critics", "a", json.RawMessage(`{}`)), context.Canceled)
	_, err := idx.List(ctx, "critics", Filter{})
	require.ErrorIs(t, err, context.Canceled)
}
