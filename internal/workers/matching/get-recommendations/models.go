// internal/workers/matching/get-recommendations/models.go
package getrecommendations

import (
	"tax-matching-workers/internal/common/validation"
	"tax-matching-workers/internal/models"
)

// Input selects recommendations either for a given diagnosis or for the
// user's latest one.
type Input struct {
	UserID            string `json:"userId,omitempty"`
	DiagnosisResultID string `json:"diagnosisResultId,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	IncludeMatchScore *bool  `json:"includeMatchScore,omitempty"`
}

func (i *Input) includeScores() bool {
	return i.IncludeMatchScore == nil || *i.IncludeMatchScore
}

type Recommendation struct {
	TaxAccountantID string                `json:"taxAccountantId"`
	OfficeName      string                `json:"officeName,omitempty"`
	Rank            int                   `json:"rank"`
	MatchingScore   *float64              `json:"matchingScore,omitempty"`
	MatchingReasons []models.FactorResult `json:"matchingReasons,omitempty"`
}

type Output struct {
	DiagnosisResultID string           `json:"diagnosisResultId"`
	Recommendations   []Recommendation `json:"recommendations"`
}

func (o *Output) Variables() map[string]interface{} {
	recs := o.Recommendations
	if recs == nil {
		recs = []Recommendation{}
	}
	return map[string]interface{}{
		"diagnosisResultId":   o.DiagnosisResultID,
		"recommendations":     recs,
		"recommendationCount": len(recs),
	}
}

func toRecommendations(decisions []models.MatchDecision, includeScores bool) []Recommendation {
	recs := make([]Recommendation, 0, len(decisions))
	for _, d := range decisions {
		rec := Recommendation{
			TaxAccountantID: d.CandidateID,
			OfficeName:      d.OfficeName,
			Rank:            d.Rank,
		}
		if includeScores {
			score := d.Score
			rec.MatchingScore = &score
			rec.MatchingReasons = d.Reasons
		}
		recs = append(recs, rec)
	}
	return recs
}

var inputSchema = func() *validation.Schema {
	schema := validation.ObjectSchema(map[string]interface{}{
		"userId":            validation.String(),
		"diagnosisResultId": validation.String(),
		"limit":             validation.Integer(1),
		"includeMatchScore": validation.Boolean(),
	})
	schema["anyOf"] = []interface{}{
		map[string]interface{}{"required": []string{"userId"}},
		map[string]interface{}{"required": []string{"diagnosisResultId"}},
	}
	return validation.MustCompileGo(schema)
}()
