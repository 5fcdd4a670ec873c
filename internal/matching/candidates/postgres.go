// internal/matching/candidates/postgres.go
package candidates

import (
	"context"
	"fmt"

	"tax-matching-workers/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	eligibleAccountantsQuery = `
		SELECT ta.id, COALESCE(ta.office_name, '') AS office_name, ta.years_of_experience,
		       ta.average_rating, ta.total_reviews, p.prefecture, p.city
		FROM tax_accountants ta
		JOIN users u ON u.id = ta.user_id
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE ta.is_accepting_clients = true AND u.is_active = true
		ORDER BY ta.id`

	specialtiesQuery = `
		SELECT tas.tax_accountant_id, s.name, tas.years_of_experience
		FROM tax_accountant_specialties tas
		JOIN specialties s ON s.id = tas.specialty_id
		WHERE tas.tax_accountant_id = ANY($1)
		ORDER BY tas.tax_accountant_id, tas.years_of_experience DESC, s.name`

	pricingPlansQuery = `
		SELECT tax_accountant_id, name, base_price
		FROM pricing_plans
		WHERE is_active = true AND tax_accountant_id = ANY($1)
		ORDER BY tax_accountant_id, display_order`
)

type accountantRow struct {
	ID                string   `db:"id"`
	OfficeName        string   `db:"office_name"`
	YearsOfExperience int      `db:"years_of_experience"`
	AverageRating     *float64 `db:"average_rating"`
	TotalReviews      int      `db:"total_reviews"`
	Prefecture        *string  `db:"prefecture"`
	City              *string  `db:"city"`
}

type specialtyRow struct {
	AccountantID string `db:"tax_accountant_id"`
	models.Specialty
}

type pricingRow struct {
	AccountantID string `db:"tax_accountant_id"`
	models.PricingTier
}

// Postgres reads the eligible candidate pool. Eligibility (accepting clients,
// active user) is decided by the query.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ListEligible(ctx context.Context) ([]models.Candidate, error) {
	var rows []accountantRow
	if err := p.db.SelectContext(ctx, &rows, eligibleAccountantsQuery); err != nil {
		return nil, fmt.Errorf("select eligible accountants: %w", err)
	}
	if len(rows) == 0 {
		return []models.Candidate{}, nil
	}

	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	out := make([]models.Candidate, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		index[r.ID] = i
		out[i] = models.Candidate{
			ID:                r.ID,
			OfficeName:        r.OfficeName,
			Prefecture:        r.Prefecture,
			City:              r.City,
			YearsOfExperience: r.YearsOfExperience,
			AverageRating:     r.AverageRating,
			TotalReviews:      r.TotalReviews,
		}
	}

	var specialties []specialtyRow
	if err := p.db.SelectContext(ctx, &specialties, specialtiesQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select specialties: %w", err)
	}
	for _, s := range specialties {
		if i, ok := index[s.AccountantID]; ok {
			out[i].Specialties = append(out[i].Specialties, s.Specialty)
		}
	}

	var plans []pricingRow
	if err := p.db.SelectContext(ctx, &plans, pricingPlansQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select pricing plans: %w", err)
	}
	for _, pl := range plans {
		if i, ok := index[pl.AccountantID]; ok {
			out[i].PricingTiers = append(out[i].PricingTiers, pl.PricingTier)
		}
	}

	return out, nil
}
