package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	paymentID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.PaymentEvent{
		PaymentID:   paymentID,
		UserID:      uuid.New(),
		Kind:        enums.PaymentKindMembership,
		ClubID:      uuid.New(),
		AmountCents: 2500,
		Currency:    "usd",
		ExternalRef: "pi_123",
		Status:      enums.PaymentStatusSuccess,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   paymentID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "domain-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Descriptor.RoutingKey != "payment.succeeded" {
		t.Fatalf("unexpected routing key %q", resolved.Descriptor.RoutingKey)
	}
	payload, ok := resolved.Payload.(*payloads.PaymentEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.PaymentID != paymentID || payload.AmountCents != 2500 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryRoutingKeys(t *testing.T) {
	reg := newTestEventRegistry(t)
	want := map[enums.OutboxEventType]string{
		enums.EventClubCreated:           "club.created",
		enums.EventClubStatusChanged:     "club.status_changed",
		enums.EventMembershipCreated:     "membership.created",
		enums.EventMembershipExpired:     "membership.expired",
		enums.EventRegistrationCreated:   "registration.created",
		enums.EventRegistrationCancelled: "registration.cancelled",
		enums.EventPaymentIntentCreated:  "payment.intent_created",
		enums.EventPaymentSucceeded:      "payment.succeeded",
		enums.EventPaymentFailed:         "payment.failed",
		enums.EventPaymentUnattached:     "payment.unattached",
	}
	if len(reg.entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(reg.entries))
	}
	for eventType, key := range want {
		desc, ok := reg.entries[eventType]
		if !ok {
			t.Fatalf("event %s not registered", eventType)
		}
		if desc.RoutingKey != key || desc.Topic != "domain-topic" {
			t.Fatalf("event %s: unexpected destination %+v", eventType, desc)
		}
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name: "unknown event",
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("club_deleted"),
				AggregateType: enums.AggregateClub,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{"clubId":"x"}`)),
			},
		},
		{
			name: "aggregate mismatch",
			event: models.OutboxEvent{
				EventType:     enums.EventMembershipCreated,
				AggregateType: enums.AggregatePayment,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "missing aggregate id",
			event: models.OutboxEvent{
				EventType:     enums.EventClubCreated,
				AggregateType: enums.AggregateClub,
				AggregateID:   uuid.Nil,
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "null payload",
			event: models.OutboxEvent{
				EventType:     enums.EventClubCreated,
				AggregateType: enums.AggregateClub,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte("null")),
			},
		},
		{
			name: "envelope from a newer writer",
			event: models.OutboxEvent{
				EventType:     enums.EventClubCreated,
				AggregateType: enums.AggregateClub,
				AggregateID:   uuid.New(),
				Payload:       datatypes.JSON(`{"version":9,"eventId":"e","data":{}}`),
			},
		},
		{
			name: "broken envelope",
			event: models.OutboxEvent{
				EventType:     enums.EventClubCreated,
				AggregateType: enums.AggregateClub,
				AggregateID:   uuid.New(),
				Payload:       datatypes.JSON(`{"data":`),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !IsNonRetryable(err) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected error for missing domain topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func TestIsNonRetryableSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewNonRetryableError(errors.New("bad")))
	if !IsNonRetryable(err) {
		t.Fatal("expected wrapped error to be non-retryable")
	}
	if IsNonRetryable(errors.New("timeout")) {
		t.Fatal("plain errors are retryable")
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) datatypes.JSON {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return datatypes.JSON(data)
}
