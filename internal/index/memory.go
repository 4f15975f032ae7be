package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex keeps documents in process memory. It backs dev mode and tests.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections []string
	data        map[string]*memCollection
	seq         uint64
}

type memCollection struct {
	order []string
	docs  map[string]memEntry
}

type memEntry struct {
	source json.RawMessage
	text   string
	fields map[string]any
	seq    uint64
}

// NewMemoryIndex builds an empty index holding the given collections.
func NewMemoryIndex(collections ...string) *MemoryIndex {
	idx := &MemoryIndex{
		collections: append([]string(nil), collections...),
		data:        make(map[string]*memCollection, len(collections)),
	}
	for _, c := range collections {
		idx.data[c] = &memCollection{docs: make(map[string]memEntry)}
	}
	return idx
}

// Collections returns the known collection names.
func (m *MemoryIndex) Collections() []string {
	return append([]string(nil), m.collections...)
}

// Upsert stores source under id, replacing any previous document with that id.
func (m *MemoryIndex) Upsert(ctx context.Context, collection, id string, source json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("upsert: empty id")
	}
	entry, err := newMemEntry(source)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.data[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if prev, exists := col.docs[id]; exists {
		entry.seq = prev.seq
	} else {
		m.seq++
		entry.seq = m.seq
		col.order = append(col.order, id)
	}
	col.docs[id] = entry
	return nil
}

// Insert stores source under a freshly generated id.
func (m *MemoryIndex) Insert(ctx context.Context, collection string, source json.RawMessage) (string, error) {
	id := uuid.NewString()
	if err := m.Upsert(ctx, collection, id, source); err != nil {
		return "", err
	}
	return id, nil
}

// Get fetches a single document.
func (m *MemoryIndex) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.data[collection]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	entry, ok := col.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{Collection: collection, ID: id, Source: entry.source}, nil
}

// List returns documents in insertion order.
func (m *MemoryIndex) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := effectiveLimit(filter.Limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.data[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	out := make([]Document, 0)
	for _, id := range col.order {
		entry := col.docs[id]
		if !matches(entry.fields, filter.Equals) {
			continue
		}
		out = append(out, Document{Collection: collection, ID: id, Source: entry.source})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Search scores documents by how often the query terms occur in their string values.
func (m *MemoryIndex) Search(ctx context.Context, query string, collections []string, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []Hit{}, nil
	}
	terms := strings.Fields(needle)
	if len(collections) == 0 {
		collections = m.collections
	}

	type scored struct {
		hit Hit
		seq uint64
	}
	var found []scored

	m.mu.RLock()
	for _, name := range collections {
		col, ok := m.data[name]
		if !ok {
			m.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
		}
		for _, id := range col.order {
			entry := col.docs[id]
			score := 0.0
			for _, term := range terms {
				score += float64(strings.Count(entry.text, term))
			}
			if len(terms) > 1 && strings.Contains(entry.text, needle) {
				score++
			}
			if score == 0 {
				continue
			}
			found = append(found, scored{
				hit: Hit{Collection: name, ID: id, Score: score, Source: entry.source},
				seq: entry.seq,
			})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].hit.Score != found[j].hit.Score {
			return found[i].hit.Score > found[j].hit.Score
		}
		return found[i].seq < found[j].seq
	})
	limit = effectiveLimit(limit)
	out := make([]Hit, 0, len(found))
	for _, s := range found {
		if len(out) == limit {
			break
		}
		out = append(out, s.hit)
	}
	return out, nil
}

func newMemEntry(source json.RawMessage) (memEntry, error) {
	var fields map[string]any
	if err := json.Unmarshal(source, &fields); err != nil {
		return memEntry{}, fmt.Errorf("document must be a JSON object: %w", err)
	}
	stored := append(json.RawMessage(nil), source...)
	return memEntry{source: stored, text: searchText(stored), fields: fields}, nil
}

func matches(fields map[string]any, equals map[string]string) bool {
	for k, want := range equals {
		v, ok := fields[k]
		if !ok || v == nil {
			return false
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

var _ Index = (*MemoryIndex)(nil)
