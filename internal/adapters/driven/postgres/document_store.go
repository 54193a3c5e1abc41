package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore on a jsonb table keyed by
// (collection, id).
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the document body.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(body), nil
}

// Set creates or replaces a document.
func (s *DocumentStore) Set(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, body, time.Now()); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update sets dotted-path fields on an existing document. The row is
// locked for the read-modify-write so concurrent updates of different
// fields do not overwrite each other.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var body []byte
		err := tx.QueryRowContext(ctx,
			`SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			collection, id,
		).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock %s/%s: %w", collection, id, err)
		}

		updated, err := domain.MergeFields(body, fields)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET body = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
			collection, id, updated, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

// Ping checks if the database is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
