// internal/matching/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const EventMatchesGenerated = "matching.matches_generated"

// SNSAPI is the subset of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// MatchesGenerated is the message body published after a snapshot is stored.
type MatchesGenerated struct {
	Event             string    `json:"event"`
	DiagnosisResultID string    `json:"diagnosisResultId"`
	RunID             string    `json:"runId"`
	MatchCount        int       `json:"matchCount"`
	TopCandidateID    string    `json:"topTaxAccountantId,omitempty"`
	TopScore          float64   `json:"topMatchingScore,omitempty"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

func NewMatchesGenerated(snap *models.MatchSnapshot) MatchesGenerated {
	msg := MatchesGenerated{
		Event:             EventMatchesGenerated,
		DiagnosisResultID: snap.SourceID,
		RunID:             snap.RunID,
		MatchCount:        len(snap.Decisions),
		GeneratedAt:       snap.CreatedAt,
	}
	if len(snap.Decisions) > 0 {
		msg.TopCandidateID = snap.Decisions[0].CandidateID
		msg.TopScore = snap.Decisions[0].Score
	}
	return msg
}

type SNSPublisher struct {
	api      SNSAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(api SNSAPI, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		api:      api,
		topicARN: topicARN,
		logger:   log.Named("matching.events"),
	}
}

func (p *SNSPublisher) PublishMatchesGenerated(ctx context.Context, snap *models.MatchSnapshot) error {
	body, err := json.Marshal(NewMatchesGenerated(snap))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	out, err := p.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventMatchesGenerated),
			},
			"diagnosisResultId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(snap.SourceID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventMatchesGenerated, err)
	}

	p.logger.Debug("matches generated event published", map[string]interface{}{
		"diagnosisResultId": snap.SourceID,
		"messageId":         aws.ToString(out.MessageId),
	})
	return nil
}

// Nop discards events. It is used when events.sns.enabled is false.
type Nop struct{}

func (Nop) PublishMatchesGenerated(context.Context, *models.MatchSnapshot) error { return nil }
