package curation

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
)

// EventPublisher announces finished exports to other systems.
type EventPublisher interface {
	PublishExportCompleted(ctx context.Context, ev ExportCompletedEvent) error
}

// PubSubEvents publishes to a Pub/Sub topic, resolving it on first use.
type PubSubEvents struct {
	TopicName   string
	CreateTopic bool

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewPubSubEvents(topicName string, createTopic bool) *PubSubEvents {
	return &PubSubEvents{TopicName: topicName, CreateTopic: createTopic}
}

func (p *PubSubEvents) resolve(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	topic := client.Topic(p.TopicName)
	if p.CreateTopic {
		topic, err = config.CreateTopicIfNotExists(ctx, client, p.TopicName)
		if err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

func (p *PubSubEvents) PublishExportCompleted(ctx context.Context, ev ExportCompletedEvent) error {
	topic, err := p.resolve(ctx)
	if err != nil {
		return err
	}
	_, err = config.PublishJSON(ctx, topic, ev, map[string]string{
		"event":      "export.completed",
		"session_id": ev.SessionID,
	})
	return err
}

// Stop flushes pending publishes.
func (p *PubSubEvents) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
