// internal/matching/aggregator.go
package matching

import (
	"fmt"
	"math"
	"sort"

	"tax-matching-workers/internal/models"
)

const weightTolerance = 1e-6

type Weights struct {
	Specialty  float64 `mapstructure:"specialty" json:"specialty"`
	Budget     float64 `mapstructure:"budget" json:"budget"`
	Location   float64 `mapstructure:"location" json:"location"`
	Experience float64 `mapstructure:"experience" json:"experience"`
	Rating     float64 `mapstructure:"rating" json:"rating"`
}

var (
	// DefaultWeights is the canonical weight table.
	DefaultWeights = Weights{Specialty: 0.35, Budget: 0.25, Location: 0.15, Experience: 0.15, Rating: 0.10}

	// LegacyWeights is the earlier table that gave location more pull.
	LegacyWeights = Weights{Specialty: 0.30, Budget: 0.25, Location: 0.20, Experience: 0.15, Rating: 0.10}
)

func (w Weights) Sum() float64 {
	return w.Specialty + w.Budget + w.Location + w.Experience + w.Rating
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"specialty":  w.Specialty,
		"budget":     w.Budget,
		"location":   w.Location,
		"experience": w.Experience,
		"rating":     w.Rating,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

func (w Weights) For(t models.FactorType) float64 {
	switch t {
	case models.FactorSpecialty:
		return w.Specialty
	case models.FactorBudget:
		return w.Budget
	case models.FactorLocation:
		return w.Location
	case models.FactorExperience:
		return w.Experience
	case models.FactorRating:
		return w.Rating
	}
	return 0
}

// WeightsForProfile resolves a named weight profile. "custom" returns the
// supplied weights after validation.
func WeightsForProfile(profile string, custom Weights) (Weights, error) {
	switch profile {
	case "", "default":
		return DefaultWeights, nil
	case "legacy":
		return LegacyWeights, nil
	case "custom":
		if err := custom.Validate(); err != nil {
			return Weights{}, err
		}
		return custom, nil
	}
	return Weights{}, fmt.Errorf("unknown weight profile %q", profile)
}

// Composite is the weighted sum of the factor scores, clamped to [0,100] and
// rounded to two decimals.
func Composite(factors []models.FactorResult, w Weights) float64 {
	var total float64
	for _, f := range factors {
		total += f.Score * w.For(f.Type)
	}
	return math.Round(clampScore(total)*100) / 100
}

// Reasons keeps non-neutral results with a positive score, highest first.
// Equal scores keep evaluation order.
func Reasons(factors []models.FactorResult) []models.FactorResult {
	reasons := make([]models.FactorResult, 0, len(factors))
	for _, f := range factors {
		if f.Score > 0 && !f.Neutral {
			reasons = append(reasons, f)
		}
	}
	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].Score > reasons[j].Score
	})
	return reasons
}

type Aggregator struct {
	weights Weights
	scorers []ScoreFunc
}

func NewAggregator(weights Weights, referenceRevenue int) *Aggregator {
	return &Aggregator{
		weights: weights,
		scorers: []ScoreFunc{
			ScoreSpecialty,
			ScoreBudget,
			ScoreLocation,
			NewExperienceScorer(referenceRevenue),
			ScoreRating,
		},
	}
}

func (a *Aggregator) Weights() Weights {
	return a.weights
}

func (a *Aggregator) Score(c *models.Candidate, criteria *models.MatchingCriteria) Scored {
	factors := make([]models.FactorResult, 0, len(a.scorers))
	for _, score := range a.scorers {
		factors = append(factors, score(c, criteria))
	}
	return Scored{
		CandidateID: c.ID,
		OfficeName:  c.OfficeName,
		Score:       Composite(factors, a.weights),
		Reasons:     Reasons(factors),
	}
}
