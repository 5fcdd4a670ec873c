// internal/matching/store/stats.go
package store

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tax-matching-workers/internal/models"
)

const (
	// SuccessThreshold is the composite score at or above which a match
	// counts as high quality.
	SuccessThreshold = 70.0
	topMatchedLimit  = 10
)

func bucketLower(score float64) int {
	return int(math.Floor(score/10)) * 10
}

func bucketLabel(lower int) string {
	return fmt.Sprintf("%d-%d", lower, lower+9)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func successRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(successes) / float64(total) * 100)
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// summarize computes statistics over the given snapshots in process.
func summarize(snapshots []*models.MatchSnapshot, from, to *time.Time) *models.MatchingStats {
	var (
		total     int
		successes int
		sum       float64
		counts    = map[string]*models.CandidateCount{}
		buckets   = map[int]int{}
	)

	for _, snap := range snapshots {
		if !inRange(snap.CreatedAt, from, to) {
			continue
		}
		for _, d := range snap.Decisions {
			total++
			sum += d.Score
			if d.Score >= SuccessThreshold {
				successes++
			}
			c, ok := counts[d.CandidateID]
			if !ok {
				c = &models.CandidateCount{CandidateID: d.CandidateID, OfficeName: d.OfficeName}
				counts[d.CandidateID] = c
			}
			c.Count++
			buckets[bucketLower(d.Score)]++
		}
	}

	stats := &models.MatchingStats{
		TotalMatches:      total,
		SuccessRate:       successRate(successes, total),
		TopMatched:        make([]models.CandidateCount, 0, len(counts)),
		ScoreDistribution: make([]models.ScoreBucket, 0, len(buckets)),
	}
	if total > 0 {
		stats.AverageMatchingScore = round2(sum / float64(total))
	}

	for _, c := range counts {
		stats.TopMatched = append(stats.TopMatched, *c)
	}
	sort.Slice(stats.TopMatched, func(i, j int) bool {
		a, b := stats.TopMatched[i], stats.TopMatched[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.CandidateID < b.CandidateID
	})
	if len(stats.TopMatched) > topMatchedLimit {
		stats.TopMatched = stats.TopMatched[:topMatchedLimit]
	}

	lowers := make([]int, 0, len(buckets))
	for lower := range buckets {
		lowers = append(lowers, lower)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lowers)))
	for _, lower := range lowers {
		stats.ScoreDistribution = append(stats.ScoreDistribution, models.ScoreBucket{
			ScoreRange: bucketLabel(lower),
			Count:      buckets[lower],
		})
	}

	return stats
}
