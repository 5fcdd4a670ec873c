// internal/common/errors/classify.go
package errors

import (
	"context"
	stderrors "errors"

	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/models"
)

// Classify maps an error returned by the matching service onto a
// StandardError. A StandardError anywhere in the chain is returned as is.
func Classify(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	switch {
	case stderrors.Is(err, models.ErrInvalidCriteria):
		return NewCriteriaInvalidError(err.Error())
	case stderrors.Is(err, models.ErrDiagnosisNotFound):
		return newError(ErrCodeDiagnosisNotFound, "Diagnosis result not found", err.Error(), false)
	case stderrors.Is(err, matching.ErrCandidateFetch):
		return NewCandidateFetchFailedError(err)
	case stderrors.Is(err, matching.ErrStoreWrite):
		return NewMatchStoreWriteFailedError(err)
	case stderrors.Is(err, matching.ErrStoreRead):
		return NewMatchStoreReadFailedError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return newError(ErrCodeMatchingTimeout, "Matching operation timed out", err.Error(), true)
	default:
		return NewInternalError(err)
	}
}
