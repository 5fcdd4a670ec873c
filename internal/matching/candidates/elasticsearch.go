// internal/matching/candidates/elasticsearch.go
package candidates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"tax-matching-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const (
	DefaultIndex    = "tax_accountants"
	DefaultPageSize = 500
)

type esDocument struct {
	ID                string   `json:"id"`
	OfficeName        string   `json:"office_name"`
	Prefecture        *string  `json:"prefecture"`
	City              *string  `json:"city"`
	YearsOfExperience int      `json:"years_of_experience"`
	AverageRating     *float64 `json:"average_rating"`
	TotalReviews      int      `json:"total_reviews"`
	Specialties       []struct {
		Name              string `json:"name"`
		YearsOfExperience int    `json:"years_of_experience"`
	} `json:"specialties"`
	PricingPlans []struct {
		Name      string `json:"name"`
		BasePrice int    `json:"base_price"`
		IsActive  bool   `json:"is_active"`
	} `json:"pricing_plans"`
}

type esHit struct {
	ID     string        `json:"_id"`
	Source esDocument    `json:"_source"`
	Sort   []interface{} `json:"sort"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// Elasticsearch reads the candidate pool from a denormalised search index.
// The pool is read in pages ordered by id, so it is never cut off at the
// index's result window.
type Elasticsearch struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
}

func NewElasticsearch(client *elasticsearch.Client, index string, pageSize int) *Elasticsearch {
	if index == "" {
		index = DefaultIndex
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Elasticsearch{client: client, index: index, pageSize: pageSize}
}

func eligibleQuery(searchAfter []interface{}) map[string]interface{} {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"is_accepting_clients": true}},
					map[string]interface{}{"term": map[string]interface{}{"is_active": true}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"id": "asc"},
		},
	}
	if len(searchAfter) > 0 {
		query["search_after"] = searchAfter
	}
	return query
}

func (e *Elasticsearch) ListEligible(ctx context.Context) ([]models.Candidate, error) {
	var (
		out         []models.Candidate
		searchAfter []interface{}
	)
	for {
		hits, err := e.searchPage(ctx, searchAfter)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			out = append(out, toCandidate(hit))
		}
		if len(hits) < e.pageSize {
			break
		}
		searchAfter = hits[len(hits)-1].Sort
		if len(searchAfter) == 0 {
			return nil, fmt.Errorf("search %s: hit without sort values, cannot page", e.index)
		}
	}
	if out == nil {
		out = []models.Candidate{}
	}
	return out, nil
}

func (e *Elasticsearch) searchPage(ctx context.Context, searchAfter []interface{}) ([]esHit, error) {
	body, err := json.Marshal(eligibleQuery(searchAfter))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(e.pageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", e.index, res.Status())
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Hits.Hits, nil
}

func toCandidate(hit esHit) models.Candidate {
	doc := hit.Source
	c := models.Candidate{
		ID:                doc.ID,
		OfficeName:        doc.OfficeName,
		Prefecture:        doc.Prefecture,
		City:              doc.City,
		YearsOfExperience: doc.YearsOfExperience,
		AverageRating:     doc.AverageRating,
		TotalReviews:      doc.TotalReviews,
	}
	if c.ID == "" {
		c.ID = hit.ID
	}
	for _, s := range doc.Specialties {
		c.Specialties = append(c.Specialties, models.Specialty{Name: s.Name, YearsOfExperience: s.YearsOfExperience})
	}
	for _, p := range doc.PricingPlans {
		if p.IsActive {
			c.PricingTiers = append(c.PricingTiers, models.PricingTier{Name: p.Name, BasePrice: p.BasePrice})
		}
	}
	return c
}
