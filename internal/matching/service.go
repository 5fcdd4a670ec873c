// internal/matching/service.go
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/common/metrics"
	"tax-matching-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultRecommendationLimit = 10

var (
	ErrCandidateFetch = errors.New("candidate fetch failed")
	ErrStoreRead      = errors.New("match store read failed")
	ErrStoreWrite     = errors.New("match store write failed")
)

type CandidateDirectory interface {
	ListEligible(ctx context.Context) ([]models.Candidate, error)
}

// SnapshotStore persists ranked snapshots. Replace and ReplaceIfAbsent are
// all-or-nothing: readers observe either the previous or the new snapshot.
type SnapshotStore interface {
	Replace(ctx context.Context, snapshot *models.MatchSnapshot) error
	ReplaceIfAbsent(ctx context.Context, snapshot *models.MatchSnapshot) (bool, error)
	Read(ctx context.Context, sourceID string) (*models.MatchSnapshot, error)
	Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error)
}

type DiagnosisProvider interface {
	Lookup(ctx context.Context, id string) (*models.Diagnosis, error)
	Latest(ctx context.Context, userID string) (*models.Diagnosis, error)
	Count(ctx context.Context, from, to *time.Time) (int, error)
}

type EventPublisher interface {
	PublishMatchesGenerated(ctx context.Context, snapshot *models.MatchSnapshot) error
}

// Request describes one matching run. A nil Criteria falls back to the
// diagnosis's stored preferences. A non-empty UserID must own the diagnosis.
type Request struct {
	SourceID string
	UserID   string
	Criteria *models.MatchingCriteria
	Limit    int
}

type Service struct {
	engine       *Engine
	candidates   CandidateDirectory
	store        SnapshotStore
	diagnoses    DiagnosisProvider
	events       EventPublisher
	logger       logger.Logger
	tracer       trace.Tracer
	defaultLimit int
	now          func() time.Time
	newRunID     func() string

	locks keyedMutex
	async sync.WaitGroup
}

type Option func(*Service)

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithDefaultLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(engine *Engine, candidates CandidateDirectory, store SnapshotStore, diagnoses DiagnosisProvider, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		engine:       engine,
		candidates:   candidates,
		store:        store,
		diagnoses:    diagnoses,
		logger:       log.Named("matching.service"),
		tracer:       otel.Tracer("tax-matching-workers/matching"),
		defaultLimit: DefaultLimit,
		now:          func() time.Time { return time.Now().UTC() },
		newRunID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Regenerate recomputes the ranking for req.SourceID and atomically replaces
// any existing snapshot. Calls for the same source are serialised.
func (s *Service) Regenerate(ctx context.Context, req Request) (snap *models.MatchSnapshot, err error) {
	ctx, finish := s.startRun(ctx, "regenerate", req.SourceID)
	defer func() { finish(snap, err) }()

	criteria, err := s.resolveCriteria(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.SourceID)
	defer unlock()

	snap, err = s.compute(ctx, req.SourceID, criteria, req.Limit)
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	s.publish(ctx, snap)
	return snap, nil
}

// GenerateIfAbsent computes and stores a snapshot only when none exists for
// the source. The bool reports whether a new snapshot was written.
func (s *Service) GenerateIfAbsent(ctx context.Context, req Request) (snap *models.MatchSnapshot, created bool, err error) {
	ctx, finish := s.startRun(ctx, "generate_if_absent", req.SourceID)
	defer func() { finish(snap, err) }()

	criteria, err := s.resolveCriteria(ctx, req)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(req.SourceID)
	defer unlock()

	existing, err := s.store.Read(ctx, req.SourceID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	if !existing.IsEmpty() {
		return existing, false, nil
	}

	snap, err = s.compute(ctx, req.SourceID, criteria, req.Limit)
	if err != nil {
		return nil, false, err
	}

	created, err = s.store.ReplaceIfAbsent(ctx, snap)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if !created {
		// another process won the race
		snap, err = s.store.Read(ctx, req.SourceID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrStoreRead, err)
		}
		return snap, false, nil
	}

	s.publish(ctx, snap)
	return snap, true, nil
}

// Read returns the stored decisions for a source in rank order. A source with
// no decisions yields an empty snapshot, not an error.
func (s *Service) Read(ctx context.Context, sourceID, userID string) (*models.MatchSnapshot, error) {
	if _, err := s.lookup(ctx, sourceID, userID); err != nil {
		return nil, err
	}
	snap, err := s.store.Read(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	if snap == nil {
		snap = &models.MatchSnapshot{SourceID: sourceID, Decisions: []models.MatchDecision{}}
	}
	return snap, nil
}

// Recommend returns up to limit decisions for the user's latest diagnosis,
// generating them first when none exist and the diagnosis has preferences.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) (*models.MatchSnapshot, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}

	d, err := s.diagnoses.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap, err := s.store.Read(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}

	if snap.IsEmpty() && d.Preferences != nil {
		snap, _, err = s.GenerateIfAbsent(ctx, Request{
			SourceID: d.ID,
			UserID:   userID,
			Criteria: d.Preferences,
			Limit:    limit,
		})
		if err != nil {
			return nil, err
		}
	}

	if snap == nil {
		snap = &models.MatchSnapshot{SourceID: d.ID}
	}
	if len(snap.Decisions) > limit {
		head := *snap
		head.Decisions = snap.Decisions[:limit]
		snap = &head
	}
	if snap.Decisions == nil {
		snap.Decisions = []models.MatchDecision{}
	}
	return snap, nil
}

func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error) {
	stats, err := s.store.Stats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	diagnoses, err := s.diagnoses.Count(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count diagnoses: %w", err)
	}
	stats.TotalDiagnoses = diagnoses
	if diagnoses > 0 {
		stats.MatchRate = float64(stats.TotalMatches) / float64(diagnoses)
	}
	return stats, nil
}

// GenerateAsync runs GenerateIfAbsent in the background. It never blocks the
// caller and failures are only logged. Without explicit criteria the run
// needs the diagnosis's stored preferences; a diagnosis without them is left
// alone. Wait blocks until pending runs finish.
func (s *Service) GenerateAsync(req Request) {
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if req.Criteria == nil {
			d, err := s.lookup(ctx, req.SourceID, req.UserID)
			if err != nil {
				s.logger.Warn("background match generation failed", map[string]interface{}{
					"diagnosisResultId": req.SourceID,
					"error":             err,
				})
				return
			}
			if d.Preferences == nil {
				s.logger.Debug("background match generation skipped, no preferences", map[string]interface{}{
					"diagnosisResultId": req.SourceID,
				})
				return
			}
			req.Criteria = d.Preferences
		}

		if _, _, err := s.GenerateIfAbsent(ctx, req); err != nil {
			s.logger.Warn("background match generation failed", map[string]interface{}{
				"diagnosisResultId": req.SourceID,
				"error":             err,
			})
		}
	}()
}

func (s *Service) Wait() {
	s.async.Wait()
}

func (s *Service) lookup(ctx context.Context, sourceID, userID string) (*models.Diagnosis, error) {
	d, err := s.diagnoses.Lookup(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if userID != "" && d.UserID != userID {
		return nil, fmt.Errorf("%w: %s", models.ErrDiagnosisNotFound, sourceID)
	}
	return d, nil
}

func (s *Service) resolveCriteria(ctx context.Context, req Request) (*models.MatchingCriteria, error) {
	d, err := s.lookup(ctx, req.SourceID, req.UserID)
	if err != nil {
		return nil, err
	}
	criteria := req.Criteria
	if criteria == nil {
		criteria = d.Preferences
	}
	if criteria == nil {
		criteria = &models.MatchingCriteria{}
	}
	if err := ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}

func (s *Service) compute(ctx context.Context, sourceID string, criteria *models.MatchingCriteria, limit int) (*models.MatchSnapshot, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	candidates, err := s.candidates.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCandidateFetch, err)
	}

	result := s.engine.Run(ctx, candidates, criteria, limit)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("matching.candidates", len(candidates)),
		attribute.Int("matching.failed", result.Failed),
	)

	s.logger.Info("matching run computed", map[string]interface{}{
		"diagnosisResultId": sourceID,
		"candidates":        len(candidates),
		"failed":            result.Failed,
		"decisions":         len(result.Decisions),
	})

	return &models.MatchSnapshot{
		SourceID:  sourceID,
		RunID:     s.newRunID(),
		Decisions: result.Decisions,
		CreatedAt: s.now(),
	}, nil
}

func (s *Service) publish(ctx context.Context, snap *models.MatchSnapshot) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMatchesGenerated(ctx, snap); err != nil {
		s.logger.Warn("failed to publish matches generated event", map[string]interface{}{
			"diagnosisResultId": snap.SourceID,
			"error":             err,
		})
	}
}

func (s *Service) startRun(ctx context.Context, operation, sourceID string) (context.Context, func(*models.MatchSnapshot, error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "matching.run", trace.WithAttributes(
		attribute.String("matching.operation", operation),
		attribute.String("matching.source_id", sourceID),
	))

	return ctx, func(snap *models.MatchSnapshot, err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if snap != nil {
			span.SetAttributes(attribute.Int("matching.decisions", len(snap.Decisions)))
		}
		span.End()

		metrics.MatchingRuns.WithLabelValues(operation, outcome).Inc()
		metrics.MatchingRunDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
