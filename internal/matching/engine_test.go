// internal/matching/engine_test.go
package matching

import (
	"context"
	"fmt"
	"testing"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{Concurrency: 4}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return e
}

func samplePool() []models.Candidate {
	return []models.Candidate{
		{
			ID:                "ta-tokyo-ec",
			Specialties:       []models.Specialty{{Name: "IT・EC業界", YearsOfExperience: 10}},
			PricingTiers:      []models.PricingTier{{BasePrice: 30000}},
			Prefecture:        models.Ptr("東京都"),
			YearsOfExperience: 10,
			AverageRating:     models.Ptr(4.8),
			TotalReviews:      24,
		},
		{
			ID:                "ta-kanagawa",
			Specialties:       []models.Specialty{{Name: "小売業", YearsOfExperience: 4}},
			PricingTiers:      []models.PricingTier{{BasePrice: 25000}},
			Prefecture:        models.Ptr("神奈川県"),
			YearsOfExperience: 6,
			AverageRating:     models.Ptr(4.2),
			TotalReviews:      8,
		},
		{
			ID:                "ta-osaka",
			Specialties:       []models.Specialty{{Name: "相続", YearsOfExperience: 20}},
			PricingTiers:      []models.PricingTier{{BasePrice: 80000}},
			Prefecture:        models.Ptr("大阪府"),
			YearsOfExperience: 22,
		},
		{
			ID:                "ta-new",
			Prefecture:        models.Ptr("福岡県"),
			YearsOfExperience: 1,
		},
	}
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	_, err := NewEngine(EngineConfig{Weights: Weights{Specialty: 0.9}}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(EngineConfig{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights, e.Weights())
	assert.Equal(t, DefaultConcurrency, e.concurrency)
}

func TestEngine_RunRanksPool(t *testing.T) {
	e := newTestEngine(t)
	criteria := &models.MatchingCriteria{
		BusinessType: models.Ptr("EC・小売"),
		Budget:       models.Ptr(30000),
		Location:     models.Ptr("東京都"),
	}

	res := e.Run(context.Background(), samplePool(), criteria, 3)

	assert.Equal(t, 4, res.Scored)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Decisions, 3)
	assert.Equal(t, "ta-tokyo-ec", res.Decisions[0].CandidateID)
	assert.Equal(t, "ta-kanagawa", res.Decisions[1].CandidateID)
	for i, d := range res.Decisions {
		assert.Equal(t, i+1, d.Rank)
		assert.NotEmpty(t, d.Reasons)
	}
}

func TestEngine_RunIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	criteria := &models.MatchingCriteria{Location: models.Ptr("大阪府"), Needs: []string{"相続"}}

	first := e.Run(context.Background(), samplePool(), criteria, 5)
	second := e.Run(context.Background(), samplePool(), criteria, 5)

	assert.Equal(t, first.Decisions, second.Decisions)
}

func TestEngine_ExcludesInvalidCandidates(t *testing.T) {
	e := newTestEngine(t)
	pool := append(samplePool(),
		models.Candidate{ID: "ta-neg-years", YearsOfExperience: -1},
		models.Candidate{ID: "ta-bad-rating", AverageRating: models.Ptr(7.5), TotalReviews: 3},
		models.Candidate{ID: "ta-neg-price", PricingTiers: []models.PricingTier{{BasePrice: -100}}},
		models.Candidate{ID: ""},
	)

	res := e.Run(context.Background(), pool, &models.MatchingCriteria{}, 10)

	assert.Equal(t, 4, res.Scored)
	assert.Equal(t, 4, res.Failed)
	for _, d := range res.Decisions {
		assert.NotContains(t, []string{"ta-neg-years", "ta-bad-rating", "ta-neg-price"}, d.CandidateID)
	}
}

func TestEngine_RecoversFromScorerPanic(t *testing.T) {
	e := newTestEngine(t)
	e.aggregator.scorers = append(e.aggregator.scorers, func(c *models.Candidate, _ *models.MatchingCriteria) models.FactorResult {
		if c.ID == "ta-osaka" {
			panic("boom")
		}
		return models.FactorResult{Type: models.FactorRating}
	})

	res := e.Run(context.Background(), samplePool(), &models.MatchingCriteria{}, 10)

	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Decisions, 3)
	for _, d := range res.Decisions {
		assert.NotEqual(t, "ta-osaka", d.CandidateID)
	}
}

func TestEngine_LargePool(t *testing.T) {
	e := newTestEngine(t)
	pool := make([]models.Candidate, 250)
	for i := range pool {
		pool[i] = models.Candidate{
			ID:                fmt.Sprintf("ta-%03d", i),
			YearsOfExperience: i % 25,
			Prefecture:        models.Ptr("東京都"),
		}
	}

	res := e.Run(context.Background(), pool, &models.MatchingCriteria{Location: models.Ptr("東京都")}, 5)

	assert.Equal(t, 250, res.Scored)
	require.Len(t, res.Decisions, 5)
	// every candidate with 20+ years ties; lowest ids win
	assert.Equal(t, "ta-020", res.Decisions[0].CandidateID)
	assert.Equal(t, "ta-021", res.Decisions[1].CandidateID)
}

func TestValidateCriteria(t *testing.T) {
	assert.NoError(t, ValidateCriteria(nil))
	assert.NoError(t, ValidateCriteria(&models.MatchingCriteria{Budget: models.Ptr(0)}))

	err := ValidateCriteria(&models.MatchingCriteria{Budget: models.Ptr(-1)})
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)

	err = ValidateCriteria(&models.MatchingCriteria{EmployeeCount: models.Ptr(-5)})
	assert.ErrorIs(t, err, models.ErrInvalidCriteria)
}
