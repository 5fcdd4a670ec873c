// internal/models/criteria.go
package models

// MatchingCriteria is a client's stated preferences for one matching run.
// A nil field means "no preference".
type MatchingCriteria struct {
	BusinessType  *string  `json:"businessType,omitempty"`
	Budget        *int     `json:"budget,omitempty"`
	Needs         []string `json:"needs,omitempty"`
	Frequency     *string  `json:"frequency,omitempty"`
	Location      *string  `json:"location,omitempty"`
	Revenue       *int     `json:"revenue,omitempty"`
	EmployeeCount *int     `json:"employeeCount,omitempty"`
}

func (c *MatchingCriteria) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.BusinessType == nil && c.Budget == nil && len(c.Needs) == 0 &&
		c.Frequency == nil && c.Location == nil && c.Revenue == nil && c.EmployeeCount == nil
}

func Ptr[T any](v T) *T {
	return &v
}
