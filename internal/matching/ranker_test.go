// internal/matching/ranker_test.go
package matching

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_TieBreaksOnCandidateID(t *testing.T) {
	got := Rank([]Scored{
		{CandidateID: "ta-b", Score: 72.0},
		{CandidateID: "ta-a", Score: 72.0},
	}, 5)

	require.Len(t, got, 2)
	assert.Equal(t, "ta-a", got[0].CandidateID)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "ta-b", got[1].CandidateID)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRank_DropsZeroScores(t *testing.T) {
	got := Rank([]Scored{
		{CandidateID: "ta-1", Score: 0},
		{CandidateID: "ta-2", Score: 10},
	}, 5)

	require.Len(t, got, 1)
	assert.Equal(t, "ta-2", got[0].CandidateID)
}

func TestRank_TruncatesToLimit(t *testing.T) {
	scored := []Scored{
		{CandidateID: "ta-1", Score: 50},
		{CandidateID: "ta-2", Score: 90},
		{CandidateID: "ta-3", Score: 70},
		{CandidateID: "ta-4", Score: 60},
		{CandidateID: "ta-5", Score: 80},
	}

	got := Rank(scored, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "ta-2", got[0].CandidateID)
	assert.Equal(t, "ta-5", got[1].CandidateID)
	assert.Equal(t, []int{1, 2}, []int{got[0].Rank, got[1].Rank})
}

func TestRank_DefaultLimit(t *testing.T) {
	scored := make([]Scored, 8)
	for i := range scored {
		scored[i] = Scored{CandidateID: fmt.Sprintf("ta-%d", i), Score: float64(10 + i)}
	}

	assert.Len(t, Rank(scored, 0), DefaultLimit)
	assert.Len(t, Rank(scored, -3), DefaultLimit)
	assert.Empty(t, Rank(nil, 5))
}

func TestRank_DenseContiguousRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		limit := rng.Intn(12) + 1
		scored := make([]Scored, n)
		eligible := 0
		for i := range scored {
			// coarse scores force ties
			score := float64(rng.Intn(6) * 20)
			if score > 0 {
				eligible++
			}
			scored[i] = Scored{CandidateID: fmt.Sprintf("ta-%03d", i), Score: score}
		}

		got := Rank(scored, limit)

		want := eligible
		if limit < want {
			want = limit
		}
		require.Len(t, got, want)
		for i, d := range got {
			assert.Equal(t, i+1, d.Rank)
			if i > 0 {
				prev := got[i-1]
				assert.True(t, prev.Score > d.Score ||
					(prev.Score == d.Score && prev.CandidateID < d.CandidateID))
			}
		}
	}
}
