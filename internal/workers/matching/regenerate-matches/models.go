// internal/workers/matching/regenerate-matches/models.go
package regeneratematches

import (
	"time"

	"tax-matching-workers/internal/common/validation"
	"tax-matching-workers/internal/models"
)

type Input struct {
	DiagnosisResultID string                   `json:"diagnosisResultId"`
	UserID            string                   `json:"userId,omitempty"`
	Criteria          *models.MatchingCriteria `json:"criteria,omitempty"`
	Limit             int                      `json:"limit,omitempty"`
}

type Output struct {
	DiagnosisResultID string                 `json:"diagnosisResultId"`
	RunID             string                 `json:"matchingRunId,omitempty"`
	Matches           []models.MatchDecision `json:"matches"`
	GeneratedAt       time.Time              `json:"matchesGeneratedAt"`
}

// Variables is the job completion payload.
func (o *Output) Variables() map[string]interface{} {
	matches := o.Matches
	if matches == nil {
		matches = []models.MatchDecision{}
	}
	return map[string]interface{}{
		"diagnosisResultId":  o.DiagnosisResultID,
		"matchingRunId":      o.RunID,
		"matchesGeneratedAt": o.GeneratedAt.Format(time.RFC3339),
		"matches":            matches,
		"matchCount":         len(matches),
	}
}

var inputSchema = validation.MustCompileGo(validation.ObjectSchema(map[string]interface{}{
	"diagnosisResultId": validation.String(),
	"userId":            validation.String(),
	"criteria":          validation.CriteriaProperty(),
	"limit":             validation.Integer(1),
}, "diagnosisResultId"))
