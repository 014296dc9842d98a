package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateClub         OutboxAggregateType = "club"
	AggregateMembership   OutboxAggregateType = "membership"
	AggregateRegistration OutboxAggregateType = "event_registration"
	AggregatePayment      OutboxAggregateType = "payment"
)

var aggregateTypes = []OutboxAggregateType{AggregateClub, AggregateMembership, AggregateRegistration, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventClubCreated           OutboxEventType = "club_created"
	EventClubStatusChanged     OutboxEventType = "club_status_changed"
	EventMembershipCreated     OutboxEventType = "membership_created"
	EventMembershipExpired     OutboxEventType = "membership_expired"
	EventRegistrationCreated   OutboxEventType = "registration_created"
	EventRegistrationCancelled OutboxEventType = "registration_cancelled"
	EventPaymentIntentCreated  OutboxEventType = "payment_intent_created"
	EventPaymentSucceeded      OutboxEventType = "payment_succeeded"
	EventPaymentFailed         OutboxEventType = "payment_failed"
	EventPaymentUnattached     OutboxEventType = "payment_unattached"
)

var outboxEventTypes = []OutboxEventType{
	EventClubCreated,
	EventClubStatusChanged,
	EventMembershipCreated,
	EventMembershipExpired,
	EventRegistrationCreated,
	EventRegistrationCancelled,
	EventPaymentIntentCreated,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentUnattached,
}

func (e OutboxEventType) IsValid() bool { return oneOf(e, outboxEventTypes) }

// Aggregate is the aggregate type an event of this type is recorded against.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventClubCreated, EventClubStatusChanged:
		return AggregateClub
	case EventMembershipCreated, EventMembershipExpired:
		return AggregateMembership
	case EventRegistrationCreated, EventRegistrationCancelled:
		return AggregateRegistration
	case EventPaymentIntentCreated, EventPaymentSucceeded, EventPaymentFailed, EventPaymentUnattached:
		return AggregatePayment
	default:
		return ""
	}
}
