package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var fieldNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGIndex implements Index on the Postgres table created by the index_documents migration.
type PGIndex struct {
	DB          *sql.DB
	collections []string
	known       map[string]struct{}
}

// NewPGIndex wraps db for the given collections.
func NewPGIndex(db *sql.DB, collections ...string) *PGIndex {
	known := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		known[c] = struct{}{}
	}
	return &PGIndex{DB: db, collections: append([]string(nil), collections...), known: known}
}

// Collections returns the known collection names.
func (p *PGIndex) Collections() []string {
	return append([]string(nil), p.collections...)
}

// Upsert inserts or replaces the document stored under id.
func (p *PGIndex) Upsert(ctx context.Context, collection, id string, source json.RawMessage) error {
	if err := p.checkCollection(collection); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("upsert: empty id")
	}
	const query = `
INSERT INTO index_documents (collection, id, source, search_blob, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (collection, id) DO UPDATE SET
  source = EXCLUDED.source,
  search_blob = EXCLUDED.search_blob,
  updated_at = now()`
	if _, err := p.DB.ExecContext(ctx, query, collection, id, string(source), searchText(source)); err != nil {
		return unavailable(err)
	}
	return nil
}

// Insert stores source under a freshly generated id.
func (p *PGIndex) Insert(ctx context.Context, collection string, source json.RawMessage) (string, error) {
	if err := p.checkCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	const query = `
INSERT INTO index_documents (collection, id, source, search_blob, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())`
	if _, err := p.DB.ExecContext(ctx, query, collection, id, string(source), searchText(source)); err != nil {
		return "", unavailable(err)
	}
	return id, nil
}

// Get fetches a single document.
func (p *PGIndex) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := p.checkCollection(collection); err != nil {
		return Document{}, err
	}
	const query = `
SELECT source
FROM index_documents
WHERE collection = $1 AND id = $2
LIMIT 1`
	var source []byte
	if err := p.DB.QueryRowContext(ctx, query, collection, id).Scan(&source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, unavailable(err)
	}
	return Document{Collection: collection, ID: id, Source: json.RawMessage(source)}, nil
}

// List returns documents in insertion order, optionally filtered on top-level fields.
func (p *PGIndex) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := p.checkCollection(collection); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("\nSELECT id, source\nFROM index_documents\nWHERE collection = $1")
	args := []any{collection}

	keys := make([]string, 0, len(filter.Equals))
	for k := range filter.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fieldNamePattern.MatchString(k) {
			return nil, fmt.Errorf("list: invalid filter field %q", k)
		}
		args = append(args, filter.Equals[k])
		fmt.Fprintf(&b, " AND source->>'%s' = $%d", k, len(args))
	}
	args = append(args, effectiveLimit(filter.Limit))
	b.WriteString("\nORDER BY seq\nLIMIT $" + strconv.Itoa(len(args)))

	rows, err := p.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		var (
			id     string
			source []byte
		)
		if err := rows.Scan(&id, &source); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, Document{Collection: collection, ID: id, Source: json.RawMessage(source)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Search combines Postgres full-text rank with a substring fallback so short fragments
// still match. Ranking is passed through as the hit score.
func (p *PGIndex) Search(ctx context.Context, query string, collections []string, limit int) ([]Hit, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []Hit{}, nil
	}
	if len(collections) == 0 {
		collections = p.collections
	}

	args := []any{needle, "%" + escapeLike(needle) + "%"}
	placeholders := make([]string, 0, len(collections))
	for _, c := range collections {
		if err := p.checkCollection(c); err != nil {
			return nil, err
		}
		args = append(args, c)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	args = append(args, effectiveLimit(limit))

	stmt := `
SELECT collection, id, source,
       ts_rank(search_vector, plainto_tsquery('simple', $1)) + CASE WHEN search_blob LIKE $2 THEN 1 ELSE 0 END AS score
FROM index_documents
WHERE collection IN (` + strings.Join(placeholders, ", ") + `)
  AND (search_vector @@ plainto_tsquery('simple', $1) OR search_blob LIKE $2)
ORDER BY score DESC, seq
LIMIT $` + strconv.Itoa(len(args))

	rows, err := p.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]Hit, 0)
	for rows.Next() {
		var (
			hit    Hit
			source []byte
		)
		if err := rows.Scan(&hit.Collection, &hit.ID, &source, &hit.Score); err != nil {
			return nil, unavailable(err)
		}
		hit.Source = json.RawMessage(source)
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (p *PGIndex) checkCollection(name string) error {
	if _, ok := p.known[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Index = (*PGIndex)(nil)
