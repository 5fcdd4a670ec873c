// internal/matching/engine.go
package matching

import (
	"context"
	"fmt"
	"math"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/common/metrics"
	"tax-matching-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

type EngineConfig struct {
	Weights              Weights
	Concurrency          int
	AverageClientRevenue int
}

// Engine scores a candidate pool against one set of criteria and ranks the
// result. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	aggregator  *Aggregator
	concurrency int
	logger      logger.Logger
}

type Result struct {
	Decisions []models.MatchDecision
	Scored    int
	Failed    int
}

func NewEngine(cfg EngineConfig, log logger.Logger) (*Engine, error) {
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{
		aggregator:  NewAggregator(weights, cfg.AverageClientRevenue),
		concurrency: concurrency,
		logger:      log.Named("matching.engine"),
	}, nil
}

func (e *Engine) Weights() Weights {
	return e.aggregator.Weights()
}

// Run scores every candidate and ranks the survivors. A candidate that fails
// validation or panics while scoring is logged and excluded; the run itself
// never fails because of one candidate.
func (e *Engine) Run(ctx context.Context, candidates []models.Candidate, criteria *models.MatchingCriteria, limit int) Result {
	slots := make([]*Scored, len(candidates))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			slots[i] = e.scoreOne(&candidates[i], criteria)
			return nil
		})
	}
	_ = g.Wait()

	scored := make([]Scored, 0, len(slots))
	failed := 0
	for _, s := range slots {
		if s == nil {
			failed++
			continue
		}
		scored = append(scored, *s)
	}

	metrics.MatchingCandidatesScored.Add(float64(len(scored)))
	if failed > 0 {
		metrics.MatchingCandidateFailures.Add(float64(failed))
	}

	return Result{
		Decisions: Rank(scored, limit),
		Scored:    len(scored),
		Failed:    failed,
	}
}

func (e *Engine) scoreOne(c *models.Candidate, criteria *models.MatchingCriteria) (result *Scored) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("candidate scoring panicked", map[string]interface{}{
				"candidateId": c.ID,
				"panic":       fmt.Sprint(r),
			})
			result = nil
		}
	}()

	if err := validateCandidate(c); err != nil {
		e.logger.Warn("candidate excluded", map[string]interface{}{
			"candidateId": c.ID,
			"error":       err,
		})
		return nil
	}

	s := e.aggregator.Score(c, criteria)
	return &s
}

func validateCandidate(c *models.Candidate) error {
	if c.ID == "" {
		return fmt.Errorf("candidate has no id")
	}
	if c.YearsOfExperience < 0 {
		return fmt.Errorf("negative years of experience: %d", c.YearsOfExperience)
	}
	if c.TotalReviews < 0 {
		return fmt.Errorf("negative review count: %d", c.TotalReviews)
	}
	if c.AverageRating != nil {
		r := *c.AverageRating
		if math.IsNaN(r) || r < 0 || r > 5 {
			return fmt.Errorf("rating out of range: %v", r)
		}
	}
	for _, s := range c.Specialties {
		if s.YearsOfExperience < 0 {
			return fmt.Errorf("negative specialty experience for %q", s.Name)
		}
	}
	for _, t := range c.PricingTiers {
		if t.BasePrice < 0 {
			return fmt.Errorf("negative base price: %d", t.BasePrice)
		}
	}
	return nil
}

// ValidateCriteria rejects criteria that are structurally unusable. It does
// not judge business semantics.
func ValidateCriteria(c *models.MatchingCriteria) error {
	if c == nil {
		return nil
	}
	if c.Budget != nil && *c.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", models.ErrInvalidCriteria)
	}
	if c.Revenue != nil && *c.Revenue < 0 {
		return fmt.Errorf("%w: revenue must not be negative", models.ErrInvalidCriteria)
	}
	if c.EmployeeCount != nil && *c.EmployeeCount < 0 {
		return fmt.Errorf("%w: employeeCount must not be negative", models.ErrInvalidCriteria)
	}
	return nil
}
