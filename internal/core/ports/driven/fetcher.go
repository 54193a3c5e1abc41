package driven

import (
	"context"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// Fetcher downloads upstream registry resources.
type Fetcher interface {
	// Fetch downloads url and returns its body with a sha256 hex digest.
	Fetch(ctx context.Context, url string) (*domain.FetchResult, error)

	// ResolveArchiveURL finds the archive link on an announcement page.
	// Returns fallback when the page carries no matching link.
	ResolveArchiveURL(page *domain.FetchResult, fallback string) string
}
