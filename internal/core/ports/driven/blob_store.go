package driven

import "context"

// BlobStore is an addressable store for archives, intermediate JSON and
// published artifacts. Paths are slash separated and relative.
type BlobStore interface {
	// Get returns the blob at path, or domain.ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put writes data to path, replacing any existing blob.
	Put(ctx context.Context, path string, data []byte) error

	// Copy duplicates the blob at src to dst.
	Copy(ctx context.Context, src, dst string) error

	// MakePublic marks the blob at path as publicly readable.
	MakePublic(ctx context.Context, path string) error
}
