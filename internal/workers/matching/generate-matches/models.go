// internal/workers/matching/generate-matches/models.go
package generatematches

import (
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
	Created           bool                   `json:"matchesCreated"`
	Matches           []models.MatchDecision `json:"matches"`
}

// Variables is the job completion payload.
func (o *Output) Variables() map[string]interface{} {
	matches := o.Matches
	if matches == nil {
		matches = []models.MatchDecision{}
	}
	return map[string]interface{}{
		"diagnosisResultId": o.DiagnosisResultID,
		"matchingRunId":     o.RunID,
		"matchesCreated":    o.Created,
		"matches":           matches,
		"matchCount":        len(matches),
	}
}

var inputSchema = validation.MustCompileGo(validation.ObjectSchema(map[string]interface{}{
	"diagnosisResultId": validation.String(),
	"userId":            validation.String(),
	"criteria":          validation.CriteriaProperty(),
	"limit":             validation.Integer(1),
}, "diagnosisResultId"))
