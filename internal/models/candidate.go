// internal/models/candidate.go
package models

type Specialty struct {
	Name              string `json:"name" db:"name"`
	YearsOfExperience int    `json:"yearsOfExperience" db:"years_of_experience"`
}

type PricingTier struct {
	Name      string `json:"name,omitempty" db:"name"`
	BasePrice int    `json:"basePrice" db:"base_price"`
}

// Candidate is a read-only provider snapshot for a single matching run.
type Candidate struct {
	ID                string        `json:"id"`
	OfficeName        string        `json:"officeName,omitempty"`
	Specialties       []Specialty   `json:"specialties"`
	PricingTiers      []PricingTier `json:"pricingTiers"`
	Prefecture        *string       `json:"prefecture,omitempty"`
	City              *string       `json:"city,omitempty"`
	YearsOfExperience int           `json:"yearsOfExperience"`
	AverageRating     *float64      `json:"averageRating,omitempty"`
	TotalReviews      int           `json:"totalReviews"`
}
