// internal/models/match.go
package models

import "time"

type FactorType string

const (
	FactorSpecialty  FactorType = "specialty"
	FactorBudget     FactorType = "budget"
	FactorLocation   FactorType = "location"
	FactorExperience FactorType = "experience"
	FactorRating     FactorType = "rating"
)

type FactorResult struct {
	Type        FactorType `json:"type"`
	Score       float64    `json:"score"`
	Description string     `json:"description"`
	// Neutral marks a "no preference / no data" result. It still counts
	// toward the composite but never becomes a reason.
	Neutral bool `json:"-"`
}

type MatchDecision struct {
	CandidateID string         `json:"taxAccountantId"`
	OfficeName  string         `json:"officeName,omitempty"`
	Score       float64        `json:"matchingScore"`
	Reasons     []FactorResult `json:"matchingReasons"`
	Rank        int            `json:"rank"`
}

type MatchSnapshot struct {
	SourceID  string          `json:"diagnosisResultId"`
	RunID     string          `json:"runId,omitempty"`
	Decisions []MatchDecision `json:"matches"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (s *MatchSnapshot) IsEmpty() bool {
	return s == nil || len(s.Decisions) == 0
}
