package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
)

// loadRunState reads the live run state. Returns nil, nil when none exists.
func loadRunState(ctx context.Context, docs driven.DocumentStore) (*domain.RunState, error) {
	raw, err := docs.Get(ctx, domain.CollectionSources, domain.RunStateID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run state: %w", err)
	}
	state := &domain.RunState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	return state, nil
}

// requireRunState is loadRunState that fails when the document is missing.
func requireRunState(ctx context.Context, docs driven.DocumentStore) (*domain.RunState, error) {
	state, err := loadRunState(ctx, docs)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrRunStateMissing
	}
	return state, nil
}

// stampRunState sets milestone fields on the live run state.
func stampRunState(ctx context.Context, docs driven.DocumentStore, fields map[string]any) error {
	if err := docs.Update(ctx, domain.CollectionSources, domain.RunStateID, fields); err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	return nil
}
