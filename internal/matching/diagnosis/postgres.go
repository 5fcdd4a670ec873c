// internal/matching/diagnosis/postgres.go
package diagnosis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tax-matching-workers/internal/common/database"
	"tax-matching-workers/internal/models"
)

const (
	lookupQuery = `
		SELECT id, user_id, preferences_json, created_at
		FROM ai_diagnosis_results
		WHERE id = $1`

	latestQuery = `
		SELECT id, user_id, preferences_json, created_at
		FROM ai_diagnosis_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	countQuery = `
		SELECT COUNT(*)
		FROM ai_diagnosis_results
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)`
)

// Postgres reads diagnoses from ai_diagnosis_results. Stored preferences
// are decoded into typed criteria here and nowhere else.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Lookup(ctx context.Context, id string) (*models.Diagnosis, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, lookupQuery, id), id)
}

func (p *Postgres) Latest(ctx context.Context, userID string) (*models.Diagnosis, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, latestQuery, userID), "latest for user "+userID)
}

func (p *Postgres) Count(ctx context.Context, from, to *time.Time) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, countQuery, database.NullTime(from), database.NullTime(to)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count diagnoses: %w", err)
	}
	return n, nil
}

func (p *Postgres) scanOne(row *sql.Row, ref string) (*models.Diagnosis, error) {
	var (
		d     models.Diagnosis
		prefs sql.NullString
	)
	err := row.Scan(&d.ID, &d.UserID, &prefs, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrDiagnosisNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("query diagnosis %s: %w", ref, err)
	}

	if prefs.Valid && prefs.String != "" && prefs.String != "null" {
		var criteria models.MatchingCriteria
		if err := json.Unmarshal([]byte(prefs.String), &criteria); err != nil {
			return nil, fmt.Errorf("%w: stored preferences for %s: %v", models.ErrInvalidCriteria, d.ID, err)
		}
		d.Preferences = &criteria
	}
	return &d, nil
}
