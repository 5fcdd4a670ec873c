// internal/models/stats.go
package models

type CandidateCount struct {
	CandidateID string `json:"taxAccountantId"`
	OfficeName  string `json:"officeName,omitempty"`
	Count       int    `json:"count"`
}

type ScoreBucket struct {
	ScoreRange string `json:"scoreRange"`
	Count      int    `json:"count"`
}

type MatchingStats struct {
	TotalMatches         int              `json:"totalMatches"`
	TotalDiagnoses       int              `json:"totalDiagnoses"`
	MatchRate            float64          `json:"matchRate"`
	AverageMatchingScore float64          `json:"averageMatchingScore"`
	SuccessRate          float64          `json:"successRate"`
	TopMatched           []CandidateCount `json:"topMatchedTaxAccountants"`
	ScoreDistribution    []ScoreBucket    `json:"scoreDistribution"`
}
