// internal/matching/candidates/static.go
package candidates

import (
	"context"

	"tax-matching-workers/internal/models"
)

// Static serves a fixed candidate pool. Callers get a copy so a run can never
// mutate the shared pool.
type Static struct {
	pool []models.Candidate
}

func NewStatic(pool []models.Candidate) *Static {
	return &Static{pool: pool}
}

func (s *Static) ListEligible(_ context.Context) ([]models.Candidate, error) {
	out := make([]models.Candidate, len(s.pool))
	copy(out, s.pool)
	return out, nil
}
