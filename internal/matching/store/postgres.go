// internal/matching/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tax-matching-workers/internal/common/database"
	"tax-matching-workers/internal/models"

	"github.com/google/uuid"
)

const (
	lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

	existsQuery = `SELECT EXISTS(SELECT 1 FROM matching_results WHERE diagnosis_result_id = $1)`

	deleteQuery = `DELETE FROM matching_results WHERE diagnosis_result_id = $1`

	insertQuery = `
		INSERT INTO matching_results (
			id, diagnosis_result_id, run_id, tax_accountant_id,
			matching_score, matching_reasons, rank, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	readQuery = `
		SELECT mr.tax_accountant_id, COALESCE(ta.office_name, ''), mr.matching_score,
		       mr.matching_reasons, mr.rank, mr.run_id, mr.created_at
		FROM matching_results mr
		LEFT JOIN tax_accountants ta ON ta.id = mr.tax_accountant_id
		WHERE mr.diagnosis_result_id = $1
		ORDER BY mr.rank ASC`

	rangeFilter = `($1::timestamptz IS NULL OR mr.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR mr.created_at <= $2)`

	summaryQuery = `
		SELECT COUNT(*), COALESCE(AVG(mr.matching_score), 0),
		       COUNT(*) FILTER (WHERE mr.matching_score >= 70)
		FROM matching_results mr
		WHERE ` + rangeFilter

	topMatchedQuery = `
		SELECT mr.tax_accountant_id, COALESCE(MAX(ta.office_name), ''), COUNT(*) AS match_count
		FROM matching_results mr
		LEFT JOIN tax_accountants ta ON ta.id = mr.tax_accountant_id
		WHERE ` + rangeFilter + `
		GROUP BY mr.tax_accountant_id
		ORDER BY match_count DESC, mr.tax_accountant_id ASC
		LIMIT 10`

	distributionQuery = `
		SELECT (FLOOR(mr.matching_score / 10) * 10)::int AS bucket, COUNT(*)
		FROM matching_results mr
		WHERE ` + rangeFilter + `
		GROUP BY bucket
		ORDER BY bucket DESC`
)

// Postgres stores snapshots in matching_results. Every write runs in one
// transaction holding a per-source advisory lock, so a failed write leaves
// the previous snapshot in place.
type Postgres struct {
	db    *sql.DB
	newID func() string
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, newID: uuid.NewString}
}

func (p *Postgres) Replace(ctx context.Context, snapshot *models.MatchSnapshot) error {
	_, err := database.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, lockQuery, snapshot.SourceID); err != nil {
			return struct{}{}, fmt.Errorf("acquire source lock: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteQuery, snapshot.SourceID); err != nil {
			return struct{}{}, fmt.Errorf("delete previous matches: %w", err)
		}
		return struct{}{}, p.insert(ctx, tx, snapshot)
	})
	return err
}

func (p *Postgres) ReplaceIfAbsent(ctx context.Context, snapshot *models.MatchSnapshot) (bool, error) {
	return database.WithTx(ctx, p.db, func(tx *sql.Tx) (bool, error) {
		if _, err := tx.ExecContext(ctx, lockQuery, snapshot.SourceID); err != nil {
			return false, fmt.Errorf("acquire source lock: %w", err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, existsQuery, snapshot.SourceID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check existing matches: %w", err)
		}
		if exists {
			return false, nil
		}

		if err := p.insert(ctx, tx, snapshot); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (p *Postgres) insert(ctx context.Context, tx *sql.Tx, snapshot *models.MatchSnapshot) error {
	for _, d := range snapshot.Decisions {
		reasons, err := json.Marshal(d.Reasons)
		if err != nil {
			return fmt.Errorf("encode reasons for %s: %w", d.CandidateID, err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery,
			p.newID(),
			snapshot.SourceID,
			snapshot.RunID,
			d.CandidateID,
			d.Score,
			string(reasons),
			d.Rank,
			snapshot.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert match %s: %w", d.CandidateID, err)
		}
	}
	return nil
}

type storedDecision struct {
	decision  models.MatchDecision
	runID     string
	createdAt time.Time
}

func scanDecision(s database.Scanner) (storedDecision, error) {
	var (
		row     storedDecision
		reasons []byte
	)
	if err := s.Scan(
		&row.decision.CandidateID,
		&row.decision.OfficeName,
		&row.decision.Score,
		&reasons,
		&row.decision.Rank,
		&row.runID,
		&row.createdAt,
	); err != nil {
		return row, err
	}

	row.decision.Reasons = []models.FactorResult{}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &row.decision.Reasons); err != nil {
			return row, fmt.Errorf("decode reasons for %s: %w", row.decision.CandidateID, err)
		}
	}
	return row, nil
}

func (p *Postgres) Read(ctx context.Context, sourceID string) (*models.MatchSnapshot, error) {
	rows, err := database.QueryMany(ctx, p.db, readQuery, []any{sourceID}, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("read matches for %s: %w", sourceID, err)
	}

	snap := empty(sourceID)
	for i, r := range rows {
		if i == 0 {
			snap.RunID = r.runID
			snap.CreatedAt = r.createdAt
		}
		snap.Decisions = append(snap.Decisions, r.decision)
	}
	return snap, nil
}

func (p *Postgres) Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error) {
	args := []any{database.NullTime(from), database.NullTime(to)}

	var (
		total     int
		average   float64
		successes int
	)
	if err := p.db.QueryRowContext(ctx, summaryQuery, args...).Scan(&total, &average, &successes); err != nil {
		return nil, fmt.Errorf("match summary: %w", err)
	}

	top, err := database.QueryMany(ctx, p.db, topMatchedQuery, args, func(s database.Scanner) (models.CandidateCount, error) {
		var c models.CandidateCount
		err := s.Scan(&c.CandidateID, &c.OfficeName, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("top matched: %w", err)
	}

	distribution, err := database.QueryMany(ctx, p.db, distributionQuery, args, func(s database.Scanner) (models.ScoreBucket, error) {
		var (
			lower int
			b     models.ScoreBucket
		)
		err := s.Scan(&lower, &b.Count)
		b.ScoreRange = bucketLabel(lower)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("score distribution: %w", err)
	}

	return &models.MatchingStats{
		TotalMatches:         total,
		AverageMatchingScore: round2(average),
		SuccessRate:          successRate(successes, total),
		TopMatched:           top,
		ScoreDistribution:    distribution,
	}, nil
}
