// internal/matching/scorers_test.go
package matching

import (
	"testing"

	"tax-matching-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func candidateWith(opts ...func(*models.Candidate)) *models.Candidate {
	c := &models.Candidate{ID: "ta-1"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func withSpecialty(name string, years int) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.Specialties = append(c.Specialties, models.Specialty{Name: name, YearsOfExperience: years})
	}
}

func withPrices(prices ...int) func(*models.Candidate) {
	return func(c *models.Candidate) {
		for _, p := range prices {
			c.PricingTiers = append(c.PricingTiers, models.PricingTier{BasePrice: p})
		}
	}
}

func withLocation(prefecture, city string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		if prefecture != "" {
			c.Prefecture = models.Ptr(prefecture)
		}
		if city != "" {
			c.City = models.Ptr(city)
		}
	}
}

func withRating(rating float64, reviews int) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.AverageRating = models.Ptr(rating)
		c.TotalReviews = reviews
	}
}

// ==========================
// Specialty
// ==========================

func TestScoreSpecialty(t *testing.T) {
	tests := []struct {
		name        string
		candidate   *models.Candidate
		criteria    *models.MatchingCriteria
		wantScore   float64
		wantDescSub string
	}{
		{
			name:      "no business type and no needs contributes nothing",
			candidate: candidateWith(withSpecialty("法人税務", 10)),
			criteria:  &models.MatchingCriteria{},
			wantScore: 0,
		},
		{
			name:        "token match on compound business type",
			candidate:   candidateWith(withSpecialty("IT・EC業界", 10)),
			criteria:    &models.MatchingCriteria{BusinessType: models.Ptr("EC・小売")},
			wantScore:   100,
			wantDescSub: "IT・EC業界",
		},
		{
			name:        "direct match scales with experience",
			candidate:   candidateWith(withSpecialty("飲食業", 2)),
			criteria:    &models.MatchingCriteria{BusinessType: models.Ptr("飲食")},
			wantScore:   76,
			wantDescSub: "飲食業 expertise (2 years)",
		},
		{
			name:      "direct match averages matched specialties",
			candidate: candidateWith(withSpecialty("不動産", 2), withSpecialty("不動産投資", 6)),
			criteria:  &models.MatchingCriteria{BusinessType: models.Ptr("不動産")},
			wantScore: 82,
			// best specialty is the most experienced one
			wantDescSub: "不動産投資 expertise (6 years)",
		},
		{
			name:        "related only match",
			candidate:   candidateWith(withSpecialty("スタートアップ支援", 5)),
			criteria:    &models.MatchingCriteria{BusinessType: models.Ptr("IT")},
			wantScore:   40,
			wantDescSub: "related field experience (スタートアップ支援)",
		},
		{
			name:      "direct takes priority over related",
			candidate: candidateWith(withSpecialty("スタートアップ支援", 5), withSpecialty("ITコンサル", 0)),
			criteria:  &models.MatchingCriteria{BusinessType: models.Ptr("IT")},
			wantScore: 70,
		},
		{
			name:        "needs apply without business type",
			candidate:   candidateWith(withSpecialty("相続税申告", 3)),
			criteria:    &models.MatchingCriteria{Needs: []string{"相続"}},
			wantScore:   10,
			wantDescSub: "相続税申告",
		},
		{
			name:      "each matched need adds ten",
			candidate: candidateWith(withSpecialty("相続税申告", 3), withSpecialty("法人税務", 3)),
			criteria:  &models.MatchingCriteria{Needs: []string{"相続", "法人", "記帳"}},
			wantScore: 20,
		},
		{
			name:      "need matching several specialties counts once",
			candidate: candidateWith(withSpecialty("相続税申告", 0), withSpecialty("相続対策", 0)),
			criteria:  &models.MatchingCriteria{Needs: []string{"相続"}},
			wantScore: 10,
		},
		{
			name:      "score is clamped",
			candidate: candidateWith(withSpecialty("IT・EC業界", 20)),
			criteria:  &models.MatchingCriteria{BusinessType: models.Ptr("EC"), Needs: []string{"ec", "it"}},
			wantScore: 100,
		},
		{
			name:      "blank specialty names are ignored",
			candidate: candidateWith(withSpecialty("  ", 10)),
			criteria:  &models.MatchingCriteria{BusinessType: models.Ptr("小売")},
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreSpecialty(tt.candidate, tt.criteria)
			assert.Equal(t, models.FactorSpecialty, got.Type)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.False(t, got.Neutral)
			if tt.wantDescSub != "" {
				assert.Contains(t, got.Description, tt.wantDescSub)
			}
		})
	}
}

// ==========================
// Budget
// ==========================

func TestScoreBudget(t *testing.T) {
	tests := []struct {
		name        string
		candidate   *models.Candidate
		budget      *int
		wantScore   float64
		wantNeutral bool
		wantDescSub string
	}{
		{"no budget is neutral", candidateWith(withPrices(30000)), nil, 50, true, "pricing plans"},
		{"no tiers is neutral", candidateWith(), models.Ptr(50000), 50, true, "pricing plans"},
		{"zero budget is neutral", candidateWith(withPrices(30000)), models.Ptr(0), 50, true, ""},
		{"well within budget", candidateWith(withPrices(40000)), models.Ptr(50000), 100, false, "40,000"},
		{"exactly at budget", candidateWith(withPrices(30000)), models.Ptr(30000), 85, false, "30,000"},
		{"twenty percent over", candidateWith(withPrices(36000)), models.Ptr(30000), 65, false, "36,000"},
		{"fifty percent over", candidateWith(withPrices(45000)), models.Ptr(30000), 40, false, "45,000"},
		{"far over budget", candidateWith(withPrices(90000)), models.Ptr(30000), 20, false, "90,000"},
		{"cheapest tier wins", candidateWith(withPrices(80000, 25000, 50000)), models.Ptr(30000), 85, false, "25,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreBudget(tt.candidate, &models.MatchingCriteria{Budget: tt.budget})
			assert.Equal(t, models.FactorBudget, got.Type)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantNeutral, got.Neutral)
			if tt.wantDescSub != "" {
				assert.Contains(t, got.Description, tt.wantDescSub)
			}
		})
	}
}

// ==========================
// Location
// ==========================

func TestScoreLocation(t *testing.T) {
	tests := []struct {
		name        string
		candidate   *models.Candidate
		location    *string
		wantScore   float64
		wantNeutral bool
	}{
		{"no location is neutral", candidateWith(withLocation("東京都", "")), nil, 50, true},
		{"unknown prefecture is neutral", candidateWith(), models.Ptr("東京都"), 50, true},
		{"exact prefecture", candidateWith(withLocation("東京都", "渋谷区")), models.Ptr("東京都"), 100, false},
		{"exact city", candidateWith(withLocation("東京都", "渋谷区")), models.Ptr("渋谷区"), 100, false},
		{"case insensitive", candidateWith(withLocation("Tokyo", "")), models.Ptr("TOKYO"), 100, false},
		{"substring", candidateWith(withLocation("東京都", "")), models.Ptr("東京"), 90, false},
		{"adjacent prefecture", candidateWith(withLocation("神奈川県", "")), models.Ptr("東京都"), 70, false},
		{"adjacent without suffix", candidateWith(withLocation("京都府", "")), models.Ptr("大阪"), 70, false},
		{"different region", candidateWith(withLocation("北海道", "")), models.Ptr("大阪府"), 30, false},
		{"no table entry", candidateWith(withLocation("東京都", "")), models.Ptr("福岡県"), 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreLocation(tt.candidate, &models.MatchingCriteria{Location: tt.location})
			assert.Equal(t, models.FactorLocation, got.Type)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantNeutral, got.Neutral)
		})
	}
}

func TestNormalizeRegion(t *testing.T) {
	assert.Equal(t, "東京", normalizeRegion(" 東京都 "))
	assert.Equal(t, "大阪", normalizeRegion("大阪府"))
	assert.Equal(t, "神奈川", normalizeRegion("神奈川県"))
	assert.Equal(t, "北海道", normalizeRegion("北海道"))
	assert.Equal(t, "京都", normalizeRegion("京都"))
}

// ==========================
// Experience
// ==========================

func TestScoreExperience_Ladder(t *testing.T) {
	tests := []struct {
		years int
		want  float64
	}{
		{25, 100}, {20, 100}, {15, 90}, {12, 80}, {10, 80},
		{5, 70}, {3, 60}, {2, 40}, {1, 40}, {0, 40},
	}

	for _, tt := range tests {
		c := &models.Candidate{ID: "ta", YearsOfExperience: tt.years}
		got := ScoreExperience(c, &models.MatchingCriteria{})
		assert.Equal(t, tt.want, got.Score, "years=%d", tt.years)
		assert.Equal(t, models.FactorExperience, got.Type)
	}
}

func TestScoreExperience_RevenueBonus(t *testing.T) {
	c := &models.Candidate{ID: "ta", YearsOfExperience: 12}

	got := ScoreExperience(c, &models.MatchingCriteria{Revenue: models.Ptr(40_000_000)})
	assert.Equal(t, 90.0, got.Score)
	assert.Contains(t, got.Description, "similar size")

	got = ScoreExperience(c, &models.MatchingCriteria{Revenue: models.Ptr(100_000_000)})
	assert.Equal(t, 80.0, got.Score)
	assert.NotContains(t, got.Description, "similar size")

	senior := &models.Candidate{ID: "ta", YearsOfExperience: 30}
	got = ScoreExperience(senior, &models.MatchingCriteria{Revenue: models.Ptr(50_000_000)})
	assert.Equal(t, 100.0, got.Score)

	got = NewExperienceScorer(0)(c, &models.MatchingCriteria{Revenue: models.Ptr(50_000_000)})
	assert.Equal(t, 80.0, got.Score)
}

// ==========================
// Rating
// ==========================

func TestScoreRating(t *testing.T) {
	tests := []struct {
		name        string
		candidate   *models.Candidate
		wantScore   float64
		wantNeutral bool
		wantDesc    string
	}{
		{"no rating", candidateWith(), 50, true, ""},
		{"no reviews", candidateWith(withRating(4.9, 0)), 50, true, ""},
		{"top rated with many reviews", candidateWith(withRating(4.9, 60)), 100, false, "top-rated (4.9★, 60 reviews)"},
		{"highly rated with review bonus", candidateWith(withRating(4.5, 20)), 95, false, "highly rated (4.5★, 20 reviews)"},
		{"well rated", candidateWith(withRating(4.0, 10)), 80, false, "well rated (4.0★, 10 reviews)"},
		{"track record", candidateWith(withRating(3.0, 5)), 60, false, "has track record (3.0★, 5 reviews)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreRating(tt.candidate, nil)
			assert.Equal(t, models.FactorRating, got.Type)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantNeutral, got.Neutral)
			if tt.wantDesc != "" {
				assert.Equal(t, tt.wantDesc, got.Description)
			}
		})
	}
}

// ==========================
// Absent criteria
// ==========================

func TestScorers_AbsentCriteriaAreNeutral(t *testing.T) {
	c := candidateWith(
		withSpecialty("法人税務", 8),
		withPrices(20000),
		withLocation("東京都", "港区"),
	)

	for _, criteria := range []*models.MatchingCriteria{nil, {}} {
		assert.Equal(t, 0.0, ScoreSpecialty(c, criteria).Score)

		budget := ScoreBudget(c, criteria)
		assert.Equal(t, NeutralScore, budget.Score)
		assert.True(t, budget.Neutral)

		location := ScoreLocation(c, criteria)
		assert.Equal(t, NeutralScore, location.Score)
		assert.True(t, location.Neutral)
	}
}
