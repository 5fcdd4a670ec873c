// internal/matching/store/memory_test.go
package store

import (
	"context"
	"testing"

	"tax-matching-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Replace / Read
// ==========================

func TestMemory_ReplaceThenRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-1", t0,
		decision("ta-1", 93.25, 1), decision("ta-2", 71, 2))))

	got, err := m.Read(ctx, "diag-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Decisions, 2)
	assert.Equal(t, "ta-1", got.Decisions[0].CandidateID)
	assert.Equal(t, 2, got.Decisions[1].Rank)
}

func TestMemory_ReplaceSwapsWholeSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-1", t0,
		decision("ta-1", 93.25, 1), decision("ta-2", 71, 2), decision("ta-3", 60, 3))))
	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-2", t1, decision("ta-9", 80, 1))))

	got, err := m.Read(ctx, "diag-1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, "ta-9", got.Decisions[0].CandidateID)
}

func TestMemory_ReadUnknownIsEmpty(t *testing.T) {
	got, err := NewMemory().Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.NotNil(t, got.Decisions)
	assert.Equal(t, "missing", got.SourceID)
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-1", t0, decision("ta-1", 93.25, 1))))

	first, err := m.Read(ctx, "diag-1")
	require.NoError(t, err)
	first.Decisions[0].Score = 0
	first.Decisions[0].Reasons[0].Description = "mutated"

	second, err := m.Read(ctx, "diag-1")
	require.NoError(t, err)
	assert.Equal(t, 93.25, second.Decisions[0].Score)
	assert.NotEqual(t, "mutated", second.Decisions[0].Reasons[0].Description)
}

func TestMemory_ReplaceIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.ReplaceIfAbsent(ctx, snapshot("diag-1", "run-1", t0, decision("ta-1", 90, 1)))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.ReplaceIfAbsent(ctx, snapshot("diag-1", "run-2", t1, decision("ta-2", 50, 1)))
	require.NoError(t, err)
	assert.False(t, created)

	got, _ := m.Read(ctx, "diag-1")
	assert.Equal(t, "run-1", got.RunID)
}

func TestMemory_ReplaceIfAbsent_OverEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-0", t0)))

	created, err := m.ReplaceIfAbsent(ctx, snapshot("diag-1", "run-1", t1, decision("ta-1", 90, 1)))
	require.NoError(t, err)
	assert.True(t, created)
}

// ==========================
// Stats
// ==========================

func seedStats(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Replace(ctx, snapshot("diag-1", "run-1", t0,
		decision("ta-1", 93.25, 1), decision("ta-2", 71, 2))))
	require.NoError(t, m.Replace(ctx, snapshot("diag-2", "run-2", t1,
		decision("ta-1", 65.5, 1), decision("ta-3", 40, 2))))
	return m
}

func TestMemory_Stats(t *testing.T) {
	stats, err := seedStats(t).Stats(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalMatches)
	assert.Equal(t, 67.44, stats.AverageMatchingScore)
	assert.Equal(t, 50.0, stats.SuccessRate)

	require.Len(t, stats.TopMatched, 3)
	assert.Equal(t, models.CandidateCount{CandidateID: "ta-1", OfficeName: "office ta-1", Count: 2}, stats.TopMatched[0])
	assert.Equal(t, "ta-2", stats.TopMatched[1].CandidateID)
	assert.Equal(t, "ta-3", stats.TopMatched[2].CandidateID)

	assert.Equal(t, []models.ScoreBucket{
		{ScoreRange: "90-99", Count: 1},
		{ScoreRange: "70-79", Count: 1},
		{ScoreRange: "60-69", Count: 1},
		{ScoreRange: "40-49", Count: 1},
	}, stats.ScoreDistribution)
}

func TestMemory_StatsDateRange(t *testing.T) {
	from := t1
	stats, err := seedStats(t).Stats(context.Background(), &from, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalMatches)
	assert.Equal(t, 52.75, stats.AverageMatchingScore)
	assert.Equal(t, 0.0, stats.SuccessRate)

	to := t0
	stats, err = seedStats(t).Stats(context.Background(), nil, &to)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMatches)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestMemory_StatsEmpty(t *testing.T) {
	stats, err := NewMemory().Stats(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMatches)
	assert.Zero(t, stats.AverageMatchingScore)
	assert.Empty(t, stats.TopMatched)
	assert.Empty(t, stats.ScoreDistribution)
}

func TestBucketLabel(t *testing.T) {
	assert.Equal(t, "70-79", bucketLabel(bucketLower(79.99)))
	assert.Equal(t, "0-9", bucketLabel(bucketLower(0.5)))
	assert.Equal(t, "100-109", bucketLabel(bucketLower(100)))
}
