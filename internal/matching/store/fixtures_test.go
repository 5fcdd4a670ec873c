// internal/matching/store/fixtures_test.go
package store

import (
	"time"

	"tax-matching-workers/internal/models"
)

var (
	t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
)

func decision(id string, score float64, rank int) models.MatchDecision {
	return models.MatchDecision{
		CandidateID: id,
		OfficeName:  "office " + id,
		Score:       score,
		Rank:        rank,
		Reasons: []models.FactorResult{
			{Type: models.FactorSpecialty, Score: 100, Description: "IT・EC業界 expertise (8 years)"},
		},
	}
}

func snapshot(sourceID, runID string, created time.Time, decisions ...models.MatchDecision) *models.MatchSnapshot {
	return &models.MatchSnapshot{
		SourceID:  sourceID,
		RunID:     runID,
		Decisions: decisions,
		CreatedAt: created,
	}
}
