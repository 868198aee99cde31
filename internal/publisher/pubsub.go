package publisher

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// GooglePubSub publishes change summaries to a Cloud Pub/Sub topic.
// The configured topic is the default; Publish accepts an override so
// per-collection topics stay possible.
type GooglePubSub struct {
	client       *pubsub.Client
	defaultTopic string
	logger       *zap.Logger
}

// NewGooglePubSub connects to the project and verifies the topic
// exists.
func NewGooglePubSub(ctx context.Context, projectID, topicName string, logger *zap.Logger) (*GooglePubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %s: %w", topicName, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("topic %s does not exist", topicName)
	}
	return &GooglePubSub{client: client, defaultTopic: topicName, logger: logger}, nil
}

// Publish sends the payload and waits for the server-assigned id.
func (g *GooglePubSub) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if topic == "" {
		topic = g.defaultTopic
	}
	result := g.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	g.logger.Debug("published change summary",
		zap.String("topic", topic),
		zap.String("message_id", id),
	)
	return id, nil
}

// Close releases the client.
func (g *GooglePubSub) Close() error {
	return g.client.Close()
}
