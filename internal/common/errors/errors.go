// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeCriteriaInvalid    ErrorCode = "CRITERIA_INVALID"
	ErrCodeDiagnosisNotFound  ErrorCode = "DIAGNOSIS_NOT_FOUND"

	ErrCodeCandidateFetchFailed  ErrorCode = "CANDIDATE_FETCH_FAILED"
	ErrCodeMatchStoreReadFailed  ErrorCode = "MATCH_STORE_READ_FAILED"
	ErrCodeMatchStoreWriteFailed ErrorCode = "MATCH_STORE_WRITE_FAILED"

	ErrCodeMatchingTimeout ErrorCode = "MATCHING_TIMEOUT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputParsingFailedError creates a non-retryable error for undecodable job variables.
func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// NewCriteriaInvalidError creates a non-retryable input validation error.
func NewCriteriaInvalidError(details string) *StandardError {
	return newError(ErrCodeCriteriaInvalid, "Matching criteria failed validation", details, false)
}

// NewDiagnosisNotFoundError creates a non-retryable lookup error.
func NewDiagnosisNotFoundError(diagnosisID string) *StandardError {
	return newError(ErrCodeDiagnosisNotFound, "Diagnosis result not found",
		fmt.Sprintf("diagnosisResultId: %s", diagnosisID), false)
}

// NewCandidateFetchFailedError creates a retryable directory error.
func NewCandidateFetchFailedError(err error) *StandardError {
	return newError(ErrCodeCandidateFetchFailed, "Failed to load eligible tax accountants", err.Error(), true)
}

// NewMatchStoreReadFailedError creates a retryable read error.
func NewMatchStoreReadFailedError(err error) *StandardError {
	return newError(ErrCodeMatchStoreReadFailed, "Failed to read matching results", err.Error(), true)
}

// NewMatchStoreWriteFailedError creates a retryable write error. The previous
// snapshot is still intact when this is returned.
func NewMatchStoreWriteFailedError(err error) *StandardError {
	return newError(ErrCodeMatchStoreWriteFailed, "Failed to store matching results", err.Error(), true)
}

// NewMatchingTimeoutError creates a retryable timeout error.
func NewMatchingTimeoutError(operation string) *StandardError {
	return newError(ErrCodeMatchingTimeout, "Matching operation timed out",
		fmt.Sprintf("operation: %s", operation), true)
}

// NewInternalError wraps an unclassified failure.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes caught by
// boundary events in the matching process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputParsingFailed:    "CRITERIA_INVALID",
	ErrCodeCriteriaInvalid:       "CRITERIA_INVALID",
	ErrCodeDiagnosisNotFound:     "DIAGNOSIS_NOT_FOUND",
	ErrCodeCandidateFetchFailed:  "CANDIDATE_FETCH_FAILED",
	ErrCodeMatchStoreReadFailed:  "MATCH_STORE_READ_FAILED",
	ErrCodeMatchStoreWriteFailed: "MATCH_STORE_WRITE_FAILED",
	ErrCodeMatchingTimeout:       "MATCHING_TIMEOUT",
	ErrCodeInternal:              "INTERNAL_ERROR",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCandidateFetchFailed,
		ErrCodeMatchStoreReadFailed,
		ErrCodeMatchStoreWriteFailed:
		return 3

	case ErrCodeMatchingTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CRITERIA") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DIAGNOSIS"):
		return "LOOKUP"
	case strings.Contains(codeStr, "CANDIDATE"):
		return "DIRECTORY"
	case strings.Contains(codeStr, "STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}
