package driven

import (
	"context"
	"encoding/json"
)

// DocumentStore holds JSON documents keyed by collection and id.
type DocumentStore interface {
	// Get returns the raw document, or domain.ErrNotFound.
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)

	// Set writes the whole document, replacing any existing one.
	Set(ctx context.Context, collection, id string, doc any) error

	// Update applies dotted-path field updates to an existing document.
	// Returns domain.ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Ping checks if the backend is healthy.
	Ping(ctx context.Context) error
}
