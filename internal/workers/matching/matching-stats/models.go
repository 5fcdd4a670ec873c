// internal/workers/matching/matching-stats/models.go
package matchingstats

import (
	"time"

	"tax-matching-workers/internal/common/validation"
	"tax-matching-workers/internal/models"
)

// Input bounds the statistics window. Either end may be open.
type Input struct {
	FromDate *time.Time `json:"fromDate,omitempty"`
	ToDate   *time.Time `json:"toDate,omitempty"`
}

type Output struct {
	Stats *models.MatchingStats `json:"matchingStats"`
}

func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"matchingStats": o.Stats,
		"totalMatches":  o.Stats.TotalMatches,
	}
}

var inputSchema = validation.MustCompileGo(validation.ObjectSchema(map[string]interface{}{
	"fromDate": validation.DateTime(),
	"toDate":   validation.DateTime(),
}))
