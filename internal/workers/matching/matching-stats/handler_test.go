package matchingstats

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"tax-matching-workers/internal/common/errors"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchingStats), args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "matching-report",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_MatchingStats",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Test Helpers
// ==========================

func createTestHandler(t *testing.T, service MatchingService) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 2, Timeout: 30 * time.Second},
		Logger:       logger.NewTestLogger(t),
		Service:      service,
	})
	require.NoError(t, err)
	return h
}

func createStats() *models.MatchingStats {
	return &models.MatchingStats{
		TotalMatches:         4,
		TotalDiagnoses:       2,
		MatchRate:            2,
		AverageMatchingScore: 72.5,
		SuccessRate:          50,
		TopMatched: []models.CandidateCount{
			{CandidateID: "ta-1", Count: 2},
		},
		ScoreDistribution: []models.ScoreBucket{
			{ScoreRange: "80-89", Count: 2},
			{ScoreRange: "60-69", Count: 2},
		},
	}
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockService{})

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"fromDate": "2024-01-01T00:00:00Z",
		"toDate":   "2024-02-01T00:00:00+09:00",
	}))
	require.NoError(t, err)
	require.NotNil(t, input.FromDate)
	require.NotNil(t, input.ToDate)
	assert.True(t, input.FromDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, input.ToDate.Equal(time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC)))
}

func TestHandler_ParseInputOpenWindow(t *testing.T) {
	h := createTestHandler(t, &MockService{})

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Nil(t, input.FromDate)
	assert.Nil(t, input.ToDate)
}

func TestHandler_ParseInputRejectsBadDates(t *testing.T) {
	h := createTestHandler(t, &MockService{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		want      string
	}{
		{"not a timestamp", map[string]interface{}{"fromDate": "last week"}, "fromDate"},
		{"inverted window", map[string]interface{}{
			"fromDate": "2024-03-01T00:00:00Z",
			"toDate":   "2024-01-01T00:00:00Z",
		}, "fromDate must not be after toDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(createMockJob(1, tt.variables))
			require.Error(t, err)

			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, errors.ErrCodeCriteriaInvalid, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.want)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	svc := &MockService{}
	h := createTestHandler(t, svc)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Stats", mock.Anything, &from, (*time.Time)(nil)).Return(createStats(), nil)

	output, err := h.Execute(context.Background(), &Input{FromDate: &from})
	require.NoError(t, err)
	assert.Equal(t, 4, output.Stats.TotalMatches)

	vars := output.Variables()
	assert.Equal(t, 4, vars["totalMatches"])

	encoded, err := json.Marshal(vars)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"scoreRange":"80-89"`)
	assert.Contains(t, string(encoded), `"topMatchedTaxAccountants"`)
	svc.AssertExpectations(t)
}

func TestHandler_ExecuteStoreError(t *testing.T) {
	svc := &MockService{}
	h := createTestHandler(t, svc)
	svc.On("Stats", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: %w", matching.ErrStoreRead, stderrors.New("connection refused")))

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)

	stdErr := errors.Classify(err)
	assert.Equal(t, errors.ErrCodeMatchStoreReadFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
