// internal/matching/scorers.go
package matching

import (
	"fmt"
	"math"
	"strings"

	"tax-matching-workers/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	NeutralScore = 50.0

	// DefaultAverageClientRevenue is the reference client revenue used by the
	// experience scorer's same-scale bonus.
	DefaultAverageClientRevenue = 50_000_000
)

// ScoreFunc scores one factor for one candidate. Implementations must not
// mutate their arguments.
type ScoreFunc func(c *models.Candidate, criteria *models.MatchingCriteria) models.FactorResult

var noPreference = models.MatchingCriteria{}

func orEmpty(criteria *models.MatchingCriteria) *models.MatchingCriteria {
	if criteria == nil {
		return &noPreference
	}
	return criteria
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func formatAmount(v int) string {
	return message.NewPrinter(language.English).Sprintf("%d", v)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func ScoreSpecialty(c *models.Candidate, criteria *models.MatchingCriteria) models.FactorResult {
	criteria = orEmpty(criteria)
	result := models.FactorResult{Type: models.FactorSpecialty}

	var score float64
	if bt := strings.ToLower(trimmed(criteria.BusinessType)); bt != "" {
		var direct []models.Specialty
		var related *models.Specialty
		for i := range c.Specialties {
			s := c.Specialties[i]
			name := strings.ToLower(strings.TrimSpace(s.Name))
			if name == "" {
				continue
			}
			if isDirectSpecialty(name, bt) {
				direct = append(direct, s)
			} else if related == nil && isRelatedSpecialty(name, bt) {
				related = &c.Specialties[i]
			}
		}

		switch {
		case len(direct) > 0:
			total := 0
			best := direct[0]
			for _, s := range direct {
				total += s.YearsOfExperience
				if s.YearsOfExperience > best.YearsOfExperience {
					best = s
				}
			}
			avg := float64(total) / float64(len(direct))
			score = 70 + math.Min(avg*3, 30)
			result.Description = fmt.Sprintf("%s expertise (%d years)", best.Name, best.YearsOfExperience)
		case related != nil:
			score = 40
			result.Description = fmt.Sprintf("related field experience (%s)", related.Name)
		}
	}

	for _, need := range criteria.Needs {
		need = strings.ToLower(strings.TrimSpace(need))
		if need == "" {
			continue
		}
		for _, s := range c.Specialties {
			if strings.Contains(strings.ToLower(s.Name), need) {
				score += 10
				if result.Description == "" {
					result.Description = fmt.Sprintf("covers requested needs (%s)", s.Name)
				}
				break
			}
		}
	}

	result.Score = clampScore(score)
	return result
}

func ScoreBudget(c *models.Candidate, criteria *models.MatchingCriteria) models.FactorResult {
	criteria = orEmpty(criteria)
	if criteria.Budget == nil || *criteria.Budget <= 0 || len(c.PricingTiers) == 0 {
		return models.FactorResult{
			Type:        models.FactorBudget,
			Score:       NeutralScore,
			Description: "has pricing plans available",
			Neutral:     true,
		}
	}

	minPrice := c.PricingTiers[0].BasePrice
	for _, tier := range c.PricingTiers[1:] {
		if tier.BasePrice < minPrice {
			minPrice = tier.BasePrice
		}
	}

	budget := float64(*criteria.Budget)
	price := formatAmount(minPrice)
	result := models.FactorResult{Type: models.FactorBudget}

	if minPrice <= *criteria.Budget {
		if float64(minPrice) <= budget*0.8 {
			result.Score = 100
			result.Description = fmt.Sprintf("well within budget (from %s/month)", price)
		} else {
			result.Score = 85
			result.Description = fmt.Sprintf("within budget (from %s/month)", price)
		}
		return result
	}

	diff := (float64(minPrice) - budget) / budget
	switch {
	case diff <= 0.2:
		result.Score = 65
		result.Description = fmt.Sprintf("flexible pricing slightly above budget (from %s/month)", price)
	case diff <= 0.5:
		result.Score = 40
		result.Description = fmt.Sprintf("pricing open to consultation (from %s/month)", price)
	default:
		result.Score = 20
		result.Description = fmt.Sprintf("premium service (from %s/month)", price)
	}
	return result
}

func ScoreLocation(c *models.Candidate, criteria *models.MatchingCriteria) models.FactorResult {
	criteria = orEmpty(criteria)
	location := strings.ToLower(trimmed(criteria.Location))
	prefecture := trimmed(c.Prefecture)
	if location == "" || prefecture == "" {
		return models.FactorResult{
			Type:        models.FactorLocation,
			Score:       NeutralScore,
			Description: "regional service",
			Neutral:     true,
		}
	}

	pref := strings.ToLower(prefecture)
	city := strings.ToLower(trimmed(c.City))
	result := models.FactorResult{Type: models.FactorLocation}

	switch {
	case pref == location || (city != "" && city == location):
		result.Score = 100
		result.Description = fmt.Sprintf("local office (%s)", prefecture)
	case strings.Contains(pref, location) || strings.Contains(location, pref) ||
		(city != "" && (strings.Contains(city, location) || strings.Contains(location, city))):
		result.Score = 90
		result.Description = fmt.Sprintf("serves the same area (%s)", prefecture)
	case isNearby(location, pref):
		result.Score = 70
		result.Description = fmt.Sprintf("serves a neighbouring area (%s)", prefecture)
	default:
		result.Score = 30
		result.Description = "remote service available"
	}
	return result
}

// NewExperienceScorer returns the experience scorer. A referenceRevenue of
// zero or less disables the same-scale bonus.
func NewExperienceScorer(referenceRevenue int) ScoreFunc {
	return func(c *models.Candidate, criteria *models.MatchingCriteria) models.FactorResult {
		criteria = orEmpty(criteria)
		years := c.YearsOfExperience
		result := models.FactorResult{Type: models.FactorExperience}

		switch {
		case years >= 20:
			result.Score = 100
			result.Description = fmt.Sprintf("extensive practice (%d years)", years)
		case years >= 15:
			result.Score = 90
			result.Description = fmt.Sprintf("substantial practice (%d years)", years)
		case years >= 10:
			result.Score = 80
			result.Description = fmt.Sprintf("solid practice (%d years)", years)
		case years >= 5:
			result.Score = 70
			result.Description = fmt.Sprintf("practice experience (%d years)", years)
		case years >= 3:
			result.Score = 60
			result.Description = fmt.Sprintf("foundational practice (%d years)", years)
		default:
			result.Score = 40
			result.Description = "fresh perspective"
		}

		if referenceRevenue > 0 && criteria.Revenue != nil {
			ref := float64(referenceRevenue)
			if math.Abs(float64(*criteria.Revenue)-ref)/ref <= 0.5 {
				result.Score = math.Min(result.Score+10, 100)
				result.Description += " (experienced with businesses of similar size)"
			}
		}
		return result
	}
}

var ScoreExperience = NewExperienceScorer(DefaultAverageClientRevenue)

func ScoreRating(c *models.Candidate, _ *models.MatchingCriteria) models.FactorResult {
	if c.AverageRating == nil || c.TotalReviews == 0 {
		return models.FactorResult{
			Type:        models.FactorRating,
			Score:       NeutralScore,
			Description: "accepting clients",
			Neutral:     true,
		}
	}

	rating := *c.AverageRating
	bonus := 0.0
	switch {
	case c.TotalReviews >= 50:
		bonus = 10
	case c.TotalReviews >= 20:
		bonus = 5
	}

	var tier string
	switch {
	case rating >= 4.8:
		tier = "top-rated"
	case rating >= 4.5:
		tier = "highly rated"
	case rating >= 4.0:
		tier = "well rated"
	default:
		tier = "has track record"
	}

	return models.FactorResult{
		Type:        models.FactorRating,
		Score:       math.Min(rating*20+bonus, 100),
		Description: fmt.Sprintf("%s (%.1f★, %d reviews)", tier, rating, c.TotalReviews),
	}
}
