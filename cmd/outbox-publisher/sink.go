package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/clubsphere/clubsphere-backend/pkg/outbox/registry"
	"github.com/clubsphere/clubsphere-backend/pkg/rabbitmq"
)

// brokerMessage is one outbox row on the wire. Pub/Sub routes by Topic and
// RabbitMQ by RoutingKey. OrderingKey keeps one aggregate's events in order
// where the broker supports it.
type brokerMessage struct {
	Topic       string
	RoutingKey  string
	OrderingKey string
	MessageID   string
	Body        []byte
	Attributes  map[string]string
	Timestamp   time.Time
}

type sink interface {
	Name() string
	Ping(context.Context) error
	Publish(context.Context, brokerMessage) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Ordering() bool
	Publisher(name string) *gcppubsub.Publisher
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type pubSubSink struct {
	ping    func(context.Context) error
	ordered bool
	lookup  func(topic string) topicPublisher
}

func newPubSubSink(client pubSubClient) *pubSubSink {
	return &pubSubSink{
		ping:    client.Ping,
		ordered: client.Ordering(),
		lookup: func(topic string) topicPublisher {
			if pub := client.Publisher(topic); pub != nil {
				return orderedPublisher{pub}
			}
			return nil
		},
	}
}

func (s *pubSubSink) Name() string { return "pubsub" }

func (s *pubSubSink) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *pubSubSink) Publish(ctx context.Context, msg brokerMessage) error {
	pub := s.lookup(msg.Topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", msg.Topic))
	}
	out := &gcppubsub.Message{Data: msg.Body, Attributes: msg.Attributes}
	if s.ordered {
		out.OrderingKey = msg.OrderingKey
	}
	result := pub.Publish(ctx, out)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", msg.Topic))
	}
	_, err := result.Get(ctx)
	return err
}

// orderedPublisher resumes an ordering key after a failed publish. Pub/Sub
// pauses the key on error and would otherwise reject every later message
// for that aggregate.
type orderedPublisher struct {
	pub *gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return resumingResult{
		result: p.pub.Publish(ctx, msg),
		resume: func() {
			if msg.OrderingKey != "" {
				p.pub.ResumePublish(msg.OrderingKey)
			}
		},
	}
}

type resumingResult struct {
	result *gcppubsub.PublishResult
	resume func()
}

func (r resumingResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.result.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}

type amqpPublisher interface {
	Ping(context.Context) error
	Publish(context.Context, rabbitmq.Message) error
}

type rabbitSink struct {
	publisher amqpPublisher
}

func newRabbitSink(publisher amqpPublisher) *rabbitSink {
	return &rabbitSink{publisher: publisher}
}

func (s *rabbitSink) Name() string { return "rabbitmq" }

func (s *rabbitSink) Ping(ctx context.Context) error { return s.publisher.Ping(ctx) }

func (s *rabbitSink) Publish(ctx context.Context, msg brokerMessage) error {
	if msg.RoutingKey == "" {
		return registry.NewNonRetryableError(errors.New("routing key not configured"))
	}
	return s.publisher.Publish(ctx, rabbitmq.Message{
		RoutingKey: msg.RoutingKey,
		MessageID:  msg.MessageID,
		Body:       msg.Body,
		Headers:    msg.Attributes,
		Timestamp:  msg.Timestamp,
	})
}
