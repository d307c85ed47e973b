package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/registry"
)

const publishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish reopens an ordering key paused by a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// newMessage carries the stored envelope unchanged. Attributes come from the
// registry route so subscribers can filter without decoding the body.
func newMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := make(map[string]string, len(resolved.Route.Attributes)+2)
	for k, v := range resolved.Route.Attributes {
		attrs[k] = v
	}
	attrs["aggregate_type"] = string(row.AggregateType)
	attrs["aggregate_id"] = row.AggregateID
	return &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: resolved.OrderingKey(),
	}
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := newMessage(row, resolved)
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}

// topicPublishers adapts the shared Pub/Sub client handles.
func topicPublishers(lookup func(string) *gcppubsub.Publisher) func(string) publisher {
	return func(topic string) publisher {
		p := lookup(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.Publisher.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return res
}

func (p gcpPublisher) ResumePublish(orderingKey string) {
	if orderingKey != "" {
		p.Publisher.ResumePublish(orderingKey)
	}
}
