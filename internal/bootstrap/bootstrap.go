// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tax-matching-workers/internal/common/aws"
	"tax-matching-workers/internal/common/config"
	"tax-matching-workers/internal/common/database"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/matching/candidates"
	"tax-matching-workers/internal/matching/diagnosis"
	"tax-matching-workers/internal/matching/events"
	"tax-matching-workers/internal/matching/store"
)

// Dependencies are the external connections the matching service runs on.
// Redis, Elasticsearch and SNS are nil when their feature is off.
type Dependencies struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	SNS           events.SNSAPI
}

// RetryPolicy controls how Connect waits for backing services at startup.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 10, InitialDelay: 2 * time.Second}

// Connect opens every connection the configuration asks for, retrying each
// with exponential backoff.
func Connect(ctx context.Context, cfg *config.Config, policy RetryPolicy, log logger.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	err := retryWithBackoff(ctx, policy, log, "PostgreSQL connection", func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		deps.Postgres = pg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.Matching.CacheEnabled {
		redisClient := database.NewRedis(cfg.Database.Redis)
		if err := retryWithBackoff(ctx, policy, log, "Redis connection", func() error {
			return redisClient.Ping(ctx)
		}); err != nil {
			redisClient.Close()
			deps.Close()
			return nil, err
		}
		deps.Redis = redisClient
	}

	if cfg.Matching.CandidateSource == config.CandidateSourceElasticsearch {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			deps.Close()
			return nil, err
		}
		if err := retryWithBackoff(ctx, policy, log, "Elasticsearch connection", func() error {
			return esClient.Ping(ctx)
		}); err != nil {
			deps.Close()
			return nil, err
		}
		deps.Elasticsearch = esClient
	}

	if cfg.Events.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Events.SNS.Region)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("create SNS client: %w", err)
		}
		deps.SNS = snsClient
	}

	return deps, nil
}

func (d *Dependencies) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Postgres != nil {
		errs = append(errs, d.Postgres.Close())
	}
	return errors.Join(errs...)
}

// NewService assembles the matching service from configuration and open
// connections. It performs no I/O.
func NewService(cfg *config.Config, deps *Dependencies, log logger.Logger, opts ...matching.Option) (*matching.Service, error) {
	if deps == nil || deps.Postgres == nil {
		return nil, errors.New("postgres connection is required")
	}

	weights, err := matching.WeightsForProfile(cfg.Matching.Weights.Profile, matching.Weights{
		Specialty:  cfg.Matching.Weights.Custom.Specialty,
		Budget:     cfg.Matching.Weights.Custom.Budget,
		Location:   cfg.Matching.Weights.Custom.Location,
		Experience: cfg.Matching.Weights.Custom.Experience,
		Rating:     cfg.Matching.Weights.Custom.Rating,
	})
	if err != nil {
		return nil, err
	}

	engine, err := matching.NewEngine(matching.EngineConfig{
		Weights:              weights,
		Concurrency:          cfg.Matching.Concurrency,
		AverageClientRevenue: cfg.Matching.AverageClientRevenue,
	}, log)
	if err != nil {
		return nil, err
	}

	directory, err := newCandidateDirectory(cfg, deps)
	if err != nil {
		return nil, err
	}

	snapshots, err := newSnapshotStore(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	opts = append([]matching.Option{
		matching.WithDefaultLimit(cfg.Matching.DefaultLimit),
		matching.WithEventPublisher(newEventPublisher(cfg, deps, log)),
	}, opts...)

	return matching.NewService(
		engine,
		directory,
		snapshots,
		diagnosis.NewPostgres(deps.Postgres.GetDB()),
		log,
		opts...,
	), nil
}

func newCandidateDirectory(cfg *config.Config, deps *Dependencies) (matching.CandidateDirectory, error) {
	switch cfg.Matching.CandidateSource {
	case config.CandidateSourceElasticsearch:
		if deps.Elasticsearch == nil {
			return nil, errors.New("elasticsearch candidate source needs an elasticsearch connection")
		}
		return candidates.NewElasticsearch(deps.Elasticsearch.Client, cfg.Database.Elasticsearch.Index, 0), nil
	case config.CandidateSourcePostgres, "":
		return candidates.NewPostgres(deps.Postgres.SQLX()), nil
	default:
		return nil, fmt.Errorf("unknown candidate source %q", cfg.Matching.CandidateSource)
	}
}

func newSnapshotStore(cfg *config.Config, deps *Dependencies, log logger.Logger) (matching.SnapshotStore, error) {
	pg := store.NewPostgres(deps.Postgres.GetDB())
	if !cfg.Matching.CacheEnabled {
		return pg, nil
	}
	if deps.Redis == nil {
		return nil, errors.New("snapshot cache needs a redis connection")
	}
	ttl := time.Duration(cfg.Matching.CacheTTL) * time.Millisecond
	return store.NewCache(pg, deps.Redis.Client, ttl, log), nil
}

func newEventPublisher(cfg *config.Config, deps *Dependencies, log logger.Logger) matching.EventPublisher {
	if !cfg.Events.SNS.Enabled || deps.SNS == nil {
		return events.Nop{}
	}
	return events.NewSNSPublisher(deps.SNS, cfg.Events.SNS.TopicARN, log)
}

func retryWithBackoff(ctx context.Context, policy RetryPolicy, log logger.Logger, operationName string, operation func() error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := policy.InitialDelay

	var err error
	for i := 0; i < attempts; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     i + 1,
			"maxAttempts": attempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, err)
}
