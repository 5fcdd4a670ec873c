// internal/matching/ranker.go
package matching

import (
	"sort"

	"tax-matching-workers/internal/models"
)

const DefaultLimit = 5

type Scored struct {
	CandidateID string
	OfficeName  string
	Score       float64
	Reasons     []models.FactorResult
}

// Rank drops zero scores, orders by score descending then candidate id
// ascending, truncates to limit and assigns dense 1-based ranks. A limit of
// zero or less means DefaultLimit.
func Rank(scored []Scored, limit int) []models.MatchDecision {
	if limit <= 0 {
		limit = DefaultLimit
	}

	eligible := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if s.Score > 0 {
			eligible = append(eligible, s)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		return eligible[i].CandidateID < eligible[j].CandidateID
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	decisions := make([]models.MatchDecision, len(eligible))
	for i, s := range eligible {
		decisions[i] = models.MatchDecision{
			CandidateID: s.CandidateID,
			OfficeName:  s.OfficeName,
			Score:       s.Score,
			Reasons:     s.Reasons,
			Rank:        i + 1,
		}
	}
	return decisions
}
