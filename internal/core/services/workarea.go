package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
)

// archivePath is where a fetched source archive is stored.
func archivePath(id string) string {
	return "sources/" + id + ".zip"
}

// workPath is the path of a parsed artifact, keyed by source id or by the
// type letter for the latest pointer.
func workPath(key, artifact string) string {
	return "work/" + key + "_" + artifact + ".json"
}

// workArea reads and writes the intermediate parsed blobs.
type workArea struct {
	blobs driven.BlobStore
}

// save writes the three artifacts under the source id, then copies them to
// the latest pointer of the source type.
func (w workArea) save(ctx context.Context, t domain.SourceType, id string, parsed *domain.ParsedSource) error {
	parts := map[string]any{
		domain.ArtifactRegions:    parsed.Regions,
		domain.ArtifactSubRegions: parsed.SubRegions,
		domain.ArtifactRecords:    parsed.Records,
	}
	for _, artifact := range domain.ParsedArtifacts {
		data, err := json.Marshal(parts[artifact])
		if err != nil {
			return fmt.Errorf("encode %s: %w", artifact, err)
		}
		if err := w.blobs.Put(ctx, workPath(id, artifact), data); err != nil {
			return fmt.Errorf("save %s: %w", workPath(id, artifact), err)
		}
	}
	for _, artifact := range domain.ParsedArtifacts {
		if err := w.blobs.Copy(ctx, workPath(id, artifact), workPath(string(t), artifact)); err != nil {
			return fmt.Errorf("copy %s: %w", workPath(id, artifact), err)
		}
	}
	return nil
}

// latest reads the parsed artifacts behind the latest pointer of t.
func (w workArea) latest(ctx context.Context, t domain.SourceType) (*domain.ParsedSource, error) {
	parsed := &domain.ParsedSource{}
	targets := map[string]any{
		domain.ArtifactRegions:    &parsed.Regions,
		domain.ArtifactSubRegions: &parsed.SubRegions,
		domain.ArtifactRecords:    &parsed.Records,
	}
	for _, artifact := range domain.ParsedArtifacts {
		path := workPath(string(t), artifact)
		data, err := w.blobs.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", path, err)
		}
		if err := json.Unmarshal(data, targets[artifact]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return parsed, nil
}
