package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Marketplace event types published to the SNS topic.
const (
	EventListingActivated       = "listing_activated"
	EventListingRemoved         = "listing_removed"
	EventReconciliationIncident = "reconciliation_incident"
)

// EventPublisher publishes marketplace events. Implementations must be safe
// for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// SNSPublisher implements EventPublisher on an SNS topic.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
}

// NewSNSPublisher builds a publisher for the topic named in
// MARKETPLACE_SNS_TOPIC_ARN.
func NewSNSPublisher(ctx context.Context) (*SNSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	topicARN := os.Getenv("MARKETPLACE_SNS_TOPIC_ARN")
	if topicARN == "" {
		return nil, fmt.Errorf("MARKETPLACE_SNS_TOPIC_ARN not set")
	}

	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
	}, nil
}

func (p *SNSPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	payload["event_type"] = eventType

	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(msgBytes)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	return err
}
