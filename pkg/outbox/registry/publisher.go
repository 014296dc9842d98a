// Package registry resolves stored outbox rows into routed, typed events for
// the outbox publisher.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
)

// EventDescriptor is where one event type is published and how its payload decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	RoutingKey     string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish however often it is retried.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err or anything it wraps is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// routingPrefixes name the aggregate segment of routing keys. Registrations
// drop the "event_" prefix of their aggregate type.
var routingPrefixes = map[enums.OutboxAggregateType]string{
	enums.AggregateClub:         "club",
	enums.AggregateMembership:   "membership",
	enums.AggregateRegistration: "registration",
	enums.AggregatePayment:      "payment",
}

var payloadFactories = map[enums.OutboxEventType]func() any{
	enums.EventClubCreated:           func() any { return &payloads.ClubCreatedEvent{} },
	enums.EventClubStatusChanged:     func() any { return &payloads.ClubStatusChangedEvent{} },
	enums.EventMembershipCreated:     func() any { return &payloads.MembershipCreatedEvent{} },
	enums.EventMembershipExpired:     func() any { return &payloads.MembershipExpiredEvent{} },
	enums.EventRegistrationCreated:   func() any { return &payloads.RegistrationCreatedEvent{} },
	enums.EventRegistrationCancelled: func() any { return &payloads.RegistrationCancelledEvent{} },
	enums.EventPaymentIntentCreated:  func() any { return &payloads.PaymentEvent{} },
	enums.EventPaymentSucceeded:      func() any { return &payloads.PaymentEvent{} },
	enums.EventPaymentFailed:         func() any { return &payloads.PaymentEvent{} },
	enums.EventPaymentUnattached:     func() any { return &payloads.PaymentEvent{} },
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends every event to the domain topic. Routing keys take
// the form <aggregate>.<action>, e.g. membership.created, so topic exchanges
// can fan out by aggregate.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if strings.TrimSpace(cfg.DomainTopic) == "" {
		return nil, errors.New("domain topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(payloadFactories))}
	for eventType, factory := range payloadFactories {
		key, err := routingKey(eventType)
		if err != nil {
			return nil, err
		}
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  eventType.Aggregate(),
			Topic:          cfg.DomainTopic,
			RoutingKey:     key,
			PayloadFactory: factory,
		}
	}
	return reg, nil
}

func routingKey(eventType enums.OutboxEventType) (string, error) {
	prefix, ok := routingPrefixes[eventType.Aggregate()]
	if !ok {
		return "", fmt.Errorf("event %s has no aggregate routing prefix", eventType)
	}
	action, found := strings.CutPrefix(string(eventType), prefix+"_")
	if !found || action == "" {
		return "", fmt.Errorf("event %s does not start with %s_", eventType, prefix)
	}
	return prefix + "." + action, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable because the row itself is malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
