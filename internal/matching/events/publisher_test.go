// internal/matching/events/publisher_test.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

const topic = "arn:aws:sns:ap-northeast-1:123456789012:matching-events"

var created = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func testSnapshot() *models.MatchSnapshot {
	return &models.MatchSnapshot{
		SourceID: "diag-1",
		RunID:    "run-1",
		Decisions: []models.MatchDecision{
			{CandidateID: "ta-1", Score: 93.25, Rank: 1},
			{CandidateID: "ta-2", Score: 71, Rank: 2},
		},
		CreatedAt: created,
	}
}

func TestSNSPublisher_Publish(t *testing.T) {
	api := new(MockSNS)
	var captured *sns.PublishInput
	api.On("Publish", mock.Anything, mock.AnythingOfType("*sns.PublishInput")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	err := NewSNSPublisher(api, topic, logger.NewTestLogger(t)).
		PublishMatchesGenerated(context.Background(), testSnapshot())

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, topic, aws.ToString(captured.TopicArn))
	assert.Equal(t, EventMatchesGenerated, aws.ToString(captured.MessageAttributes["event"].StringValue))

	var body MatchesGenerated
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(captured.Message)), &body))
	assert.Equal(t, "diag-1", body.DiagnosisResultID)
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.MatchCount)
	assert.Equal(t, "ta-1", body.TopCandidateID)
	assert.Equal(t, 93.25, body.TopScore)
	assert.True(t, created.Equal(body.GeneratedAt))
	api.AssertExpectations(t)
}

func TestSNSPublisher_PublishError(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewSNSPublisher(api, topic, logger.NewNoOpLogger()).
		PublishMatchesGenerated(context.Background(), testSnapshot())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNewMatchesGenerated_EmptySnapshot(t *testing.T) {
	msg := NewMatchesGenerated(&models.MatchSnapshot{SourceID: "diag-2", RunID: "run-9"})
	assert.Equal(t, 0, msg.MatchCount)
	assert.Empty(t, msg.TopCandidateID)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishMatchesGenerated(context.Background(), testSnapshot()))
}
