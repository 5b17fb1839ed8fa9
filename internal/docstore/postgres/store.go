package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lifecycle-lab/internal/docstore"
)

const defaultPageSize = 100

// Store is a PostgreSQL-backed implementation of docstore.Store.
type Store struct {
	pool *Pool
}

// NewStore creates a Store on an existing pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ docstore.Store = (*Store)(nil)

// Put writes or overwrites a document.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := marshalFields(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, doc_id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, doc_id)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, collection, id, payload); err != nil {
		return translate("put document", err)
	}
	return nil
}

// Create writes a document only if the ID is free.
func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := marshalFields(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, doc_id, fields)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, collection, id, payload); err != nil {
		return translate("create document", err)
	}
	return nil
}

// Get retrieves a document's fields, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	query := `
		SELECT fields
		FROM documents
		WHERE collection = $1 AND doc_id = $2
	`

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, collection, id).Scan(&raw); err != nil {
		return nil, translate("get document", err)
	}
	return unmarshalFields(raw)
}

// Delete removes a document; deleting a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := `
		DELETE FROM documents
		WHERE collection = $1 AND doc_id = $2
	`
	if _, err := s.pool.Exec(ctx, query, collection, id); err != nil {
		return translate("delete document", err)
	}
	return nil
}

// CompareAndPut writes fields only if the guarded field still holds expect.
// A non-empty expect requires an existing row; an empty expect also claims a
// missing document. Both paths decide by affected-row count, so concurrent
// writers race on the database's row lock, not on a read-then-write gap.
func (s *Store) CompareAndPut(ctx context.Context, collection, id string, fields map[string]any, field, expect string) error {
	payload, err := marshalFields(fields)
	if err != nil {
		return err
	}

	var tag string
	var res int64
	if expect == "" {
		query := `
			INSERT INTO documents (collection, doc_id, fields)
			VALUES ($1, $2, $3)
			ON CONFLICT (collection, doc_id)
			DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
			WHERE COALESCE(documents.fields->>$4, '') = ''
		`
		ct, err := s.pool.Exec(ctx, query, collection, id, payload, field)
		if err != nil {
			return translate("conditional put", err)
		}
		res = ct.RowsAffected()
		tag = "claim"
	} else {
		query := `
			UPDATE documents
			SET fields = $3, updated_at = now()
			WHERE collection = $1 AND doc_id = $2 AND documents.fields->>$4 = $5
		`
		ct, err := s.pool.Exec(ctx, query, collection, id, payload, field, expect)
		if err != nil {
			return translate("conditional put", err)
		}
		res = ct.RowsAffected()
		tag = "swap"
	}
	if res == 0 {
		return fmt.Errorf("%s %s/%s: %w", tag, collection, id, docstore.ErrConditionFailed)
	}
	return nil
}

// Query returns one page of documents ordered by document ID.
func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) (*docstore.Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := `
		SELECT doc_id, fields
		FROM documents
		WHERE collection = $1
		  AND ($2 = '' OR fields->>$2 = $3)
		  AND ($4 = '' OR doc_id > $4)
		ORDER BY doc_id ASC
		LIMIT $5
	`

	// Fetch one extra to learn whether another page exists.
	rows, err := s.pool.Query(ctx, query, collection, q.FilterField, q.FilterValue, q.StartAfter, limit+1)
	if err != nil {
		return nil, translate("query documents", err)
	}
	defer rows.Close()

	page := &docstore.Page{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, translate("scan document row", err)
		}
		if len(page.Docs) == limit {
			page.NextCursor = page.Docs[limit-1].ID
			break
		}
		fields, err := unmarshalFields(raw)
		if err != nil {
			return nil, err
		}
		page.Docs = append(page.Docs, docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate document rows", err)
	}
	return page, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: nil document fields", docstore.ErrInvalidArgument)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal document fields: %v", docstore.ErrInvalidArgument, err)
	}
	return payload, nil
}

func unmarshalFields(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: unmarshal document fields: %v", docstore.ErrInvalidArgument, err)
	}
	return fields, nil
}
