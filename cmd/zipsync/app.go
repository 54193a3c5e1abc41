package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/zipsync/internal/adapters/driven/blobfs"
	"github.com/custodia-labs/zipsync/internal/adapters/driven/httpfetch"
	"github.com/custodia-labs/zipsync/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/zipsync/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/zipsync/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/zipsync/internal/adapters/driven/redis"
	"github.com/custodia-labs/zipsync/internal/config"
	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/core/services"
	"github.com/custodia-labs/zipsync/internal/metrics"
)

// app holds the backends shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *postgres.DB
	redis *redis.Client

	docs      driven.DocumentStore
	blobs     driven.BlobStore
	queue     driven.TaskQueue
	lock      driven.DistributedLock
	scheduled driven.SchedulerStore

	metrics  *metrics.Collector
	registry *prometheus.Registry
}

// newApp connects PostgreSQL, optionally Redis, and the blob root.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	logger.Info("connecting to postgres")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: postgres.DefaultConfig("").ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	a.docs = postgres.NewDocumentStore(db)
	a.scheduled = postgres.NewSchedulerStore(db)

	blobs, err := blobfs.New(cfg.Blob.Root)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.blobs = blobs

	if cfg.Redis.URL != "" {
		logger.Info("connecting to redis")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}

		hostname, _ := os.Hostname()
		q, err := redisqueue.NewQueue(ctx, a.redis, fmt.Sprintf("%s-%d", hostname, os.Getpid()))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.queue = q
		a.lock = redisadapter.NewLock(a.redis)
		logger.Info("using redis task queue and lock")
	} else {
		a.queue = postgresqueue.NewQueue(db.DB)
		a.lock = postgres.NewAdvisoryLock(db)
		logger.Info("using postgres task queue and advisory lock")
	}

	a.metrics = metrics.NewCollector()
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		a.metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return a, nil
}

// Close releases every backend connection.
func (a *app) Close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) sourceFetcher() *services.SourceFetcher {
	endpoints := make(map[domain.SourceType]services.SourceEndpoint, len(domain.SourceTypes))
	for _, t := range domain.SourceTypes {
		sc := a.cfg.Sources.For(t)
		endpoints[t] = services.SourceEndpoint{PageURL: sc.PageURL, ArchiveURL: sc.ArchiveURL}
	}
	return services.NewSourceFetcher(services.SourceFetcherConfig{
		Fetcher: httpfetch.NewClient(httpfetch.Config{
			Timeout:    a.cfg.Fetch.Timeout,
			UserAgent:  a.cfg.Fetch.UserAgent,
			MaxRetries: a.cfg.Fetch.MaxRetries,
			Logger:     a.logger,
		}),
		Blobs:     a.blobs,
		Docs:      a.docs,
		TaskQueue: a.queue,
		Endpoints: endpoints,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
}

func (a *app) pipeline() *services.SourcePipeline {
	return services.NewSourcePipeline(services.SourcePipelineConfig{
		Blobs:     a.blobs,
		Docs:      a.docs,
		TaskQueue: a.queue,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
}

func (a *app) publisher() *services.ShardPublisher {
	return services.NewShardPublisher(services.ShardPublisherConfig{
		Blobs:   a.blobs,
		Docs:    a.docs,
		Metrics: a.metrics,
		Logger:  a.logger,
	})
}

func (a *app) reporter() *services.StatusReporter {
	return services.NewStatusReporter(services.StatusReporterConfig{
		Docs:          a.docs,
		DefaultSender: a.cfg.Mail.DefaultSender,
		SubjectPrefix: a.cfg.Mail.SubjectPrefix,
		Metrics:       a.metrics,
		Logger:        a.logger,
	})
}

// scheduler returns nil when scheduling is disabled.
func (a *app) scheduler() *services.Scheduler {
	if !a.cfg.Scheduler.Enabled {
		return nil
	}
	return services.NewScheduler(services.SchedulerConfig{
		Store:        a.scheduled,
		TaskQueue:    a.queue,
		Lock:         a.lock,
		Logger:       a.logger,
		LockRequired: a.cfg.Scheduler.LockRequired,
	})
}

func (a *app) opsService() *services.OpsService {
	return services.NewOpsService(services.OpsServiceConfig{
		Docs:      a.docs,
		TaskQueue: a.queue,
		Lock:      a.lock,
		Logger:    a.logger,
	})
}
