package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"tax-matching-workers/internal/common/config"
	"tax-matching-workers/internal/common/database"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/matching/candidates"
	"tax-matching-workers/internal/matching/events"
	"tax-matching-workers/internal/matching/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type stubSNS struct{}

func (stubSNS) Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return &sns.PublishOutput{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Matching: config.MatchingConfig{
			DefaultLimit:    5,
			Concurrency:     4,
			CandidateSource: config.CandidateSourcePostgres,
			CacheTTL:        60000,
			Weights:         config.WeightsConfig{Profile: "default"},
		},
		Database: config.DatabaseConfig{
			Elasticsearch: config.ElasticsearchConfig{Index: "tax_accountants"},
		},
	}
}

func testDependencies(t *testing.T) *Dependencies {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Dependencies{Postgres: &database.PostgresClient{DB: db}}
}

// ==========================
// Service Assembly Tests
// ==========================

func TestNewService(t *testing.T) {
	svc, err := NewService(testConfig(), testDependencies(t), logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config, *Dependencies)
		wantErr string
	}{
		{
			name:    "no postgres",
			mutate:  func(_ *config.Config, d *Dependencies) { d.Postgres = nil },
			wantErr: "postgres connection is required",
		},
		{
			name:    "unknown weight profile",
			mutate:  func(c *config.Config, _ *Dependencies) { c.Matching.Weights.Profile = "aggressive" },
			wantErr: "unknown weight profile",
		},
		{
			name: "custom weights off by one",
			mutate: func(c *config.Config, _ *Dependencies) {
				c.Matching.Weights = config.WeightsConfig{
					Profile: "custom",
					Custom:  config.FactorWeights{Specialty: 0.5, Budget: 0.5, Location: 0.5},
				}
			},
			wantErr: "sum",
		},
		{
			name:    "elasticsearch without connection",
			mutate:  func(c *config.Config, _ *Dependencies) { c.Matching.CandidateSource = config.CandidateSourceElasticsearch },
			wantErr: "needs an elasticsearch connection",
		},
		{
			name:    "unknown candidate source",
			mutate:  func(c *config.Config, _ *Dependencies) { c.Matching.CandidateSource = "csv" },
			wantErr: "unknown candidate source",
		},
		{
			name:    "cache without redis",
			mutate:  func(c *config.Config, _ *Dependencies) { c.Matching.CacheEnabled = true },
			wantErr: "needs a redis connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			deps := testDependencies(t)
			tt.mutate(cfg, deps)

			_, err := NewService(cfg, deps, logger.NewTestLogger(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewCandidateDirectory(t *testing.T) {
	cfg := testConfig()
	deps := testDependencies(t)

	dir, err := newCandidateDirectory(cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &candidates.Postgres{}, dir)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: "http://localhost:9200"})
	require.NoError(t, err)
	deps.Elasticsearch = es
	cfg.Matching.CandidateSource = config.CandidateSourceElasticsearch

	dir, err = newCandidateDirectory(cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &candidates.Elasticsearch{}, dir)
}

func TestNewSnapshotStore(t *testing.T) {
	cfg := testConfig()
	deps := testDependencies(t)

	s, err := newSnapshotStore(cfg, deps, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &store.Postgres{}, s)

	mr := miniredis.RunT(t)
	deps.Redis = database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { deps.Redis.Close() })
	cfg.Matching.CacheEnabled = true

	s, err = newSnapshotStore(cfg, deps, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &store.Cache{}, s)
}

func TestNewEventPublisher(t *testing.T) {
	cfg := testConfig()
	deps := testDependencies(t)

	assert.IsType(t, events.Nop{}, newEventPublisher(cfg, deps, logger.NewTestLogger(t)))

	cfg.Events.SNS = config.SNSConfig{Enabled: true, TopicARN: "arn:aws:sns:ap-northeast-1:123456789012:matching"}
	assert.IsType(t, events.Nop{}, newEventPublisher(cfg, deps, logger.NewTestLogger(t)))

	deps.SNS = stubSNS{}
	assert.IsType(t, &events.SNSPublisher{}, newEventPublisher(cfg, deps, logger.NewTestLogger(t)))
}

// ==========================
// Retry Tests
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond}

	calls := 0
	err := retryWithBackoff(context.Background(), policy, logger.NewTestLogger(t), "Redis connection", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	cause := errors.New("connection refused")
	err = retryWithBackoff(context.Background(), policy, logger.NewTestLogger(t), "Redis connection", func() error {
		calls++
		return cause
	})
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestRetryWithBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, RetryPolicy{Attempts: 5, InitialDelay: time.Hour}, logger.NewTestLogger(t), "PostgreSQL connection", func() error {
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
