package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub"
)

// Publisher delivers lifecycle events to downstream consumers (notifications,
// the token ledger, analytics).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type pubsubPublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubPublisher returns a Publisher backed by Cloud Pub/Sub.
func NewPubSubPublisher(client *pubsub.Client) Publisher {
	return &pubsubPublisher{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}
}

func (p *pubsubPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	result := p.topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *pubsubPublisher) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[name]; ok {
		return t
	}
	t := p.client.Topic(name)
	p.topics[name] = t
	return t
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a Publisher that only logs events, for local development and tests.
func NewLogPublisher(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.logger.Info("event published", slog.String("topic", topic), slog.Any("payload", payload))
	return nil
}
