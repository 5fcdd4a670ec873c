// internal/models/diagnosis.go
package models

import (
	"errors"
	"time"
)

var (
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	ErrInvalidCriteria   = errors.New("invalid matching criteria")
)

type Diagnosis struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Preferences *MatchingCriteria `json:"preferences,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
