package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// orderedPublishers hands out one ordering-enabled publisher per topic.
type orderedPublishers struct {
	client pubSubClient

	mu     sync.Mutex
	topics map[string]publisher
}

func newOrderedPublishers(client pubSubClient) *orderedPublishers {
	return &orderedPublishers{client: client, topics: make(map[string]publisher)}
}

func (o *orderedPublishers) forTopic(topic string) publisher {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pub, ok := o.topics[topic]; ok {
		return pub
	}
	raw := o.client.Publisher(topic)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	pub := orderedPublisher{raw}
	o.topics[topic] = pub
	return pub
}

type orderedPublisher struct {
	*gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return resumingResult{
		result: p.Publisher.Publish(ctx, msg),
		pub:    p.Publisher,
		key:    msg.OrderingKey,
	}
}

// resumingResult unpauses the ordering key after a failed publish. Pub/Sub stops
// accepting messages for a key once one of them fails.
type resumingResult struct {
	result *gcppubsub.PublishResult
	pub    *gcppubsub.Publisher
	key    string
}

func (r resumingResult) Get(ctx context.Context) (string, error) {
	id, err := r.result.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
