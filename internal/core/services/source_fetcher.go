package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/metrics"
)

// SourceEndpoint locates one registry upstream.
type SourceEndpoint struct {
	// PageURL is the announcement page whose hash gates archive downloads
	PageURL string

	// ArchiveURL is used when the page carries no archive link
	ArchiveURL string
}

// SourceFetcher detects upstream changes and saves new archives.
type SourceFetcher struct {
	fetcher   driven.Fetcher
	blobs     driven.BlobStore
	docs      driven.DocumentStore
	taskQueue driven.TaskQueue
	endpoints map[domain.SourceType]SourceEndpoint
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// SourceFetcherConfig holds dependencies for SourceFetcher.
type SourceFetcherConfig struct {
	Fetcher   driven.Fetcher
	Blobs     driven.BlobStore
	Docs      driven.DocumentStore
	TaskQueue driven.TaskQueue
	Endpoints map[domain.SourceType]SourceEndpoint
	Metrics   *metrics.Collector // Optional
	Logger    *slog.Logger
	Now       func() time.Time // Optional: clock override for tests
}

// NewSourceFetcher creates a new source fetcher.
func NewSourceFetcher(cfg SourceFetcherConfig) *SourceFetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SourceFetcher{
		fetcher:   cfg.Fetcher,
		blobs:     cfg.Blobs,
		docs:      cfg.Docs,
		taskQueue: cfg.TaskQueue,
		endpoints: cfg.Endpoints,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Sync checks both registries and returns the types that were updated.
//
// Announcement pages are always fetched. When both page hashes match the
// run state nothing else happens. Otherwise the archive of each changed
// page is fetched; a type is updated only if its archive hash changed too.
// Updated archives are saved, the previous run state is archived to
// history, the new run state is written and one parse_sources task is
// enqueued.
func (f *SourceFetcher) Sync(ctx context.Context) ([]domain.SourceType, error) {
	curr, err := loadRunState(ctx, f.docs)
	if err != nil {
		return nil, err
	}

	pages, err := f.fetchPages(ctx)
	if err != nil {
		return nil, err
	}

	if curr != nil && pageUnchanged(curr, domain.SourceTypeK, pages) && pageUnchanged(curr, domain.SourceTypeJ, pages) {
		f.logger.Info("sources unchanged")
		return nil, nil
	}

	next := &domain.RunState{}
	for _, t := range domain.SourceTypes {
		if d := curr.Source(t); d != nil {
			cp := *d
			next.SetSource(t, &cp)
		}
	}

	now := f.now().UTC()
	var updated []domain.SourceType

	for _, t := range domain.SourceTypes {
		if pageUnchanged(curr, t, pages) {
			continue
		}

		endpoint := f.endpoints[t]
		url := f.fetcher.ResolveArchiveURL(pages[t], endpoint.ArchiveURL)
		archive, err := f.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch %s archive: %w", t, err)
		}
		f.metrics.SourceFetched(string(t), "archive")

		if prev := curr.Source(t); prev != nil && prev.ArchiveHash == archive.Hash {
			f.logger.Info("archive unchanged", "type", t, "source_id", prev.ID)
			continue
		}

		id := domain.NewSourceID(t, now)
		if err := f.blobs.Put(ctx, archivePath(id), archive.Body); err != nil {
			return nil, fmt.Errorf("save %s: %w", archivePath(id), err)
		}
		savedAt := now
		next.SetSource(t, &domain.SourceDescriptor{
			ID:          id,
			PageHash:    pages[t].Hash,
			ArchiveHash: archive.Hash,
			SavedAt:     &savedAt,
		})
		updated = append(updated, t)

		f.logger.Info("saved source", "type", t, "source_id", id, "bytes", len(archive.Body))
	}

	if len(updated) == 0 {
		return nil, nil
	}

	if history := curr.HistoryID(); history != "" {
		if err := f.docs.Set(ctx, domain.CollectionSources, history, curr); err != nil {
			return nil, fmt.Errorf("archive run state to %s: %w", history, err)
		}
		f.logger.Info("archived run state", "history_id", history)
	}

	if err := f.docs.Set(ctx, domain.CollectionSources, domain.RunStateID, next); err != nil {
		return nil, fmt.Errorf("write run state: %w", err)
	}

	if next.K == nil || next.J == nil {
		f.logger.Warn("run state incomplete, parse not requested", "updated", updated)
		return updated, nil
	}

	task, err := domain.NewParseSourcesTask(domain.ParsePayload{K: next.K.Ref(), J: next.J.Ref()})
	if err != nil {
		return nil, err
	}
	if err := f.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue parse_sources: %w", err)
	}

	f.logger.Info("requested parse", "task_id", task.ID, "k", next.K.ID, "j", next.J.ID)
	return updated, nil
}

// fetchPages downloads both announcement pages concurrently.
func (f *SourceFetcher) fetchPages(ctx context.Context) (map[domain.SourceType]*domain.FetchResult, error) {
	results := make([]*domain.FetchResult, len(domain.SourceTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range domain.SourceTypes {
		g.Go(func() error {
			page, err := f.fetcher.Fetch(gctx, f.endpoints[t].PageURL)
			if err != nil {
				return fmt.Errorf("fetch %s page: %w", t, err)
			}
			f.metrics.SourceFetched(string(t), "page")
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make(map[domain.SourceType]*domain.FetchResult, len(results))
	for i, t := range domain.SourceTypes {
		pages[t] = results[i]
	}
	return pages, nil
}

func pageUnchanged(curr *domain.RunState, t domain.SourceType, pages map[domain.SourceType]*domain.FetchResult) bool {
	prev := curr.Source(t)
	return prev != nil && prev.PageHash == pages[t].Hash
}
