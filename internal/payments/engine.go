package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	dbpkg "github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/metrics"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
	"github.com/clubsphere/clubsphere-backend/pkg/tracing"
)

// Settlement sources, used for metrics and logs.
const (
	SourceConfirm   = "confirm"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
)

// notCompletedRetryAfter is the hint sent while the customer or the gateway
// still has to act on an intent.
const notCompletedRetryAfter = 5 * time.Second

// Reasons recorded on payments flagged for refund.
const (
	reasonAlreadyEnrolled = "already_enrolled"
	reasonEventFull       = "event_full"
	reasonAmountMismatch  = "amount_mismatch"
	reasonLateSuccess     = "late_success"
)

var errFeeChanged = errors.New("event fee changed since the intent was priced")

type clubStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Club, error)
}

type eventStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)
}

type membershipStore interface {
	HasActive(ctx context.Context, userID, clubID uuid.UUID) (bool, error)
	HasActiveTx(ctx context.Context, tx *gorm.DB, userID, clubID uuid.UUID) (bool, error)
	CreateTx(ctx context.Context, tx *gorm.DB, membership *models.Membership) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Membership, error)
}

type registrationStore interface {
	HasRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	HasRegisteredTx(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (bool, error)
	CountRegistered(ctx context.Context, eventID uuid.UUID) (int64, error)
	CountRegisteredTx(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error)
	CreateTx(ctx context.Context, tx *gorm.DB, registration *models.EventRegistration) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.EventRegistration, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type EngineParams struct {
	Repo           Repository
	Clubs          clubStore
	Events         eventStore
	Memberships    membershipStore
	Registrations  registrationStore
	Gateway        Gateway
	Tx             txRunner
	Outbox         outbox.Emitter
	Logger         *logger.Logger
	Metrics        *metrics.PaymentMetrics
	Currency       string
	MembershipTerm time.Duration
	Now            func() time.Time
}

// Engine owns the payment lifecycle: intent creation, confirmation and
// settlement into memberships or event registrations.
type Engine struct {
	repo           Repository
	clubs          clubStore
	events         eventStore
	memberships    membershipStore
	registrations  registrationStore
	gateway        Gateway
	tx             txRunner
	outbox         outbox.Emitter
	logg           *logger.Logger
	metrics        *metrics.PaymentMetrics
	currency       string
	membershipTerm time.Duration
	now            func() time.Time
}

func NewEngine(p EngineParams) (*Engine, error) {
	switch {
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repository required")
	case p.Clubs == nil || p.Events == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club and event stores required")
	case p.Memberships == nil || p.Registrations == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership and registration stores required")
	case p.Gateway == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		repo:           p.Repo,
		clubs:          p.Clubs,
		events:         p.Events,
		memberships:    p.Memberships,
		registrations:  p.Registrations,
		gateway:        p.Gateway,
		tx:             p.Tx,
		outbox:         p.Outbox,
		logg:           p.Logger,
		metrics:        p.Metrics,
		currency:       currency,
		membershipTerm: p.MembershipTerm,
		now:            now,
	}, nil
}

type paymentTarget struct {
	clubID      uuid.UUID
	eventID     *uuid.UUID
	feeCents    int64
	description string
}

// CreateIntent opens a gateway intent for the target's fee and records a pending payment.
// The gateway call happens before any transaction is opened.
func (e *Engine) CreateIntent(ctx context.Context, actor auth.Actor, input CreateIntentInput) (result *IntentResult, err error) {
	ctx, span := tracing.Start(ctx, "payments.CreateIntent",
		attribute.String("payment.kind", string(input.Kind)),
		attribute.String("payment.target_id", input.TargetID.String()),
	)
	defer func() { tracing.End(span, err) }()

	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind must be membership or event")
	}
	if input.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "targetId is required")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}

	target, err := e.resolveTarget(ctx, actor, input)
	if err != nil {
		return nil, err
	}
	if input.AmountCents != 0 && input.AmountCents != target.feeCents {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount does not match the current fee").
			WithDetails(map[string]any{"expected": target.feeCents, "received": input.AmountCents})
	}

	paymentID := uuid.New()
	metadata := map[string]string{
		"payment_id": paymentID.String(),
		"user_id":    actor.UserID.String(),
		"kind":       string(input.Kind),
		"club_id":    target.clubID.String(),
	}
	if target.eventID != nil {
		metadata["event_id"] = target.eventID.String()
	}
	intent, err := e.gateway.CreateIntent(ctx, CreateIntentRequest{
		AmountCents:    target.feeCents,
		Currency:       e.currency,
		IdempotencyKey: "payment-" + paymentID.String(),
		Description:    target.description,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, gatewayError(err, "create payment intent")
	}

	payment := &models.Payment{
		ID:              paymentID,
		UserID:          actor.UserID,
		Kind:            input.Kind,
		ClubID:          target.clubID,
		EventID:         target.eventID,
		AmountCents:     target.feeCents,
		Currency:        e.currency,
		ExternalRef:     intent.ID,
		Status:          enums.PaymentStatusPending,
		GatewaySnapshot: snapshot(intent, e.now()),
	}
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if target.eventID != nil {
			// Event edits check for pending payments under this lock.
			event, err := e.events.FindByIDForUpdate(ctx, tx, *target.eventID)
			if err != nil {
				return err
			}
			if event.FeeCents() != target.feeCents {
				return errFeeChanged
			}
		}
		if err := e.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		return e.outbox.Emit(ctx, tx, e.paymentEvent(enums.EventPaymentIntentCreated, payment, ""))
	})
	if errors.Is(err, errFeeChanged) {
		if _, cancelErr := e.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
			e.logg.Error(e.logg.WithField(ctx, "intent_id", intent.ID), "cancel intent opened at a stale fee", cancelErr)
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event fee changed; request a new intent").
			WithRetryAfter(notCompletedRetryAfter)
	}
	if err != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{"payment_id": paymentID.String(), "intent_id": intent.ID})
		e.logg.Error(logCtx, "gateway intent created but payment row not recorded", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}

	e.metrics.IncIntent(string(input.Kind))
	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		PaymentID:    payment.ID,
		Amount:       payment.AmountCents,
		Currency:     payment.Currency,
	}, nil
}

func (e *Engine) resolveTarget(ctx context.Context, actor auth.Actor, input CreateIntentInput) (*paymentTarget, error) {
	switch input.Kind {
	case enums.PaymentKindMembership:
		club, err := e.clubs.FindByID(ctx, input.TargetID)
		if err != nil {
			return nil, notFoundOr(err, "club not found", "load club")
		}
		if club.Status != enums.ClubStatusApproved {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "club is not accepting members")
		}
		if club.IsFree() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "free items bypass payment")
		}
		active, err := e.memberships.HasActive(ctx, actor.UserID, club.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
		}
		if active {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyMember, "already a member of this club")
		}
		return &paymentTarget{
			clubID:      club.ID,
			feeCents:    club.MembershipFeeCents,
			description: "Membership: " + club.Name,
		}, nil

	case enums.PaymentKindEvent:
		event, err := e.events.FindByID(ctx, input.TargetID)
		if err != nil {
			return nil, notFoundOr(err, "event not found", "load event")
		}
		if !event.EventDate.After(e.now()) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event has already taken place")
		}
		if event.FeeCents() == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "free items bypass payment")
		}
		registered, err := e.registrations.HasRegistered(ctx, actor.UserID, event.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check registration")
		}
		if registered {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyRegistered, "already registered for this event")
		}
		if event.HasCapacityLimit() {
			count, err := e.registrations.CountRegistered(ctx, event.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count registrations")
			}
			if count >= int64(event.MaxAttendees) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event is full")
			}
		}
		eventID := event.ID
		return &paymentTarget{
			clubID:      event.ClubID,
			eventID:     &eventID,
			feeCents:    event.FeeCents(),
			description: "Event: " + event.Title,
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment kind")
}

// Confirm verifies the intent with the gateway and settles the payment. Replays
// of a settled payment return the original outcome.
func (e *Engine) Confirm(ctx context.Context, actor auth.Actor, intentID, proof string) (result *ConfirmResult, err error) {
	intentID = strings.TrimSpace(intentID)
	ctx, span := tracing.Start(ctx, "payments.Confirm", attribute.String("payment.intent_id", intentID))
	defer func() { tracing.End(span, err) }()

	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intentId is required")
	}
	payment, err := e.repo.FindByExternalRef(ctx, intentID)
	if err != nil {
		return nil, notFoundOr(err, "payment not found", "load payment")
	}
	if payment.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	if settled(payment) {
		return e.settledResult(ctx, payment)
	}

	intent, err := e.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, gatewayError(err, "retrieve payment intent")
	}
	if proof == "" || subtle.ConstantTimeCompare([]byte(proof), []byte(intent.ClientSecret)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment proof")
	}
	return e.apply(ctx, payment, intent, SourceConfirm)
}

// ReconcileIntent settles or fails the payment behind a gateway-verified intent
// without ownership checks. Webhooks and the reconcile job call it.
func (e *Engine) ReconcileIntent(ctx context.Context, intent *Intent, source string) (result *ConfirmResult, err error) {
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent is required")
	}
	ctx, span := tracing.Start(ctx, "payments.ReconcileIntent",
		attribute.String("payment.intent_id", intent.ID),
		attribute.String("payment.source", source),
	)
	defer func() { tracing.End(span, err) }()

	payment, err := e.repo.FindByExternalRef(ctx, intent.ID)
	if err != nil {
		return nil, notFoundOr(err, "payment not found", "load payment")
	}
	if settled(payment) {
		return e.settledResult(ctx, payment)
	}
	return e.apply(ctx, payment, intent, source)
}

// settled reports whether the gateway can no longer change the payment. A
// failed payment still listens for a late success so the charge is not lost.
func settled(payment *models.Payment) bool {
	return payment.Status == enums.PaymentStatusSuccess || payment.FlaggedForRefund
}

func (e *Engine) apply(ctx context.Context, payment *models.Payment, intent *Intent, source string) (*ConfirmResult, error) {
	if intent.ID != payment.ExternalRef {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent does not belong to payment")
	}
	switch {
	case intent.Status == IntentSucceeded:
		return e.settle(ctx, payment.ID, intent, source)
	case payment.Status != enums.PaymentStatusPending:
		return e.settledResult(ctx, payment)
	case intent.Status.Failed():
		return e.fail(ctx, payment.ID, intent, source)
	default:
		details := map[string]any{"status": intent.Status}
		if intent.FailureMessage != "" {
			details["lastError"] = intent.FailureMessage
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed").
			WithDetails(details).
			WithRetryAfter(notCompletedRetryAfter)
	}
}

// settle marks the payment successful and creates the record it paid for, all
// under the target row lock. Money that cannot be attached (seat taken, amount
// drift, or a success arriving after the payment was failed) is committed as
// flagged for refund and the matching conflict is returned.
func (e *Engine) settle(ctx context.Context, paymentID uuid.UUID, intent *Intent, source string) (*ConfirmResult, error) {
	var (
		result ConfirmResult
		reason string
		replay bool
	)
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		payment, err := repo.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		result.Payment = payment
		now := e.now()

		switch {
		case settled(payment):
			replay = true
			return nil
		case payment.Status == enums.PaymentStatusFailed:
			reason = reasonLateSuccess
			payment.FlaggedForRefund = true
			payment.FailureReason = &reason
			payment.GatewaySnapshot = snapshot(intent, now)
			if err := repo.FlagForRefund(ctx, payment); err != nil {
				return err
			}
			return e.outbox.Emit(ctx, tx, e.paymentEvent(enums.EventPaymentUnattached, payment, reason))
		}

		if intent.AmountCents != payment.AmountCents || !strings.EqualFold(intent.Currency, payment.Currency) {
			reason = reasonAmountMismatch
		} else {
			conflict, err := e.recheckTarget(ctx, tx, payment)
			if err != nil {
				return err
			}
			if conflict != "" {
				reason = unattachedReason(conflict)
			}
		}

		payment.Status = enums.PaymentStatusSuccess
		payment.ConfirmedAt = &now
		payment.GatewaySnapshot = snapshot(intent, now)
		if reason != "" {
			payment.FlaggedForRefund = true
			payment.FailureReason = &reason
		}
		if err := repo.SaveOutcome(ctx, payment); err != nil {
			return err
		}
		if err := e.outbox.Emit(ctx, tx, e.paymentEvent(enums.EventPaymentSucceeded, payment, "")); err != nil {
			return err
		}
		if reason != "" {
			return e.outbox.Emit(ctx, tx, e.paymentEvent(enums.EventPaymentUnattached, payment, reason))
		}
		return e.attach(ctx, tx, payment, now, &result)
	})

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"payment_id":    paymentID.String(),
		"intent_id":     intent.ID,
		"source":        source,
		"gateway_cents": intent.AmountCents,
	})
	if err != nil {
		e.metrics.IncSettlement(source, "error")
		e.metrics.IncReconciliationPending()
		e.logg.Error(logCtx, "payment settlement failed after gateway success", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeReconciliationPending, err, "payment received, settlement pending").
			WithDetails(map[string]any{"paymentId": paymentID, "intentId": intent.ID})
	}
	if replay {
		return e.settledResult(ctx, result.Payment)
	}
	if reason != "" {
		e.metrics.IncSettlement(source, "unattached")
		e.metrics.IncUnattached()
		e.logg.Warn(e.logg.WithField(logCtx, "reason", reason), "payment succeeded but could not be attached, flagged for refund")
		return nil, unattachedError(result.Payment)
	}

	e.metrics.IncSettlement(source, "success")
	e.logg.Info(logCtx, "payment settled")
	return &result, nil
}

// recheckTarget locks the club or event and repeats the uniqueness and capacity checks.
func (e *Engine) recheckTarget(ctx context.Context, tx *gorm.DB, payment *models.Payment) (pkgerrors.Code, error) {
	switch payment.Kind {
	case enums.PaymentKindMembership:
		if _, err := e.clubs.FindByIDForUpdate(ctx, tx, payment.ClubID); err != nil {
			return "", fmt.Errorf("lock club: %w", err)
		}
		active, err := e.memberships.HasActiveTx(ctx, tx, payment.UserID, payment.ClubID)
		if err != nil {
			return "", fmt.Errorf("check membership: %w", err)
		}
		if active {
			return pkgerrors.CodeAlreadyEnrolled, nil
		}
		return "", nil

	case enums.PaymentKindEvent:
		if payment.EventID == nil {
			return "", errors.New("event payment without event id")
		}
		event, err := e.events.FindByIDForUpdate(ctx, tx, *payment.EventID)
		if err != nil {
			return "", fmt.Errorf("lock event: %w", err)
		}
		registered, err := e.registrations.HasRegisteredTx(ctx, tx, payment.UserID, event.ID)
		if err != nil {
			return "", fmt.Errorf("check registration: %w", err)
		}
		if registered {
			return pkgerrors.CodeAlreadyEnrolled, nil
		}
		if event.HasCapacityLimit() {
			count, err := e.registrations.CountRegisteredTx(ctx, tx, event.ID)
			if err != nil {
				return "", fmt.Errorf("count registrations: %w", err)
			}
			if count >= int64(event.MaxAttendees) {
				return pkgerrors.CodeEventFull, nil
			}
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown payment kind %q", payment.Kind)
}

func (e *Engine) attach(ctx context.Context, tx *gorm.DB, payment *models.Payment, now time.Time, result *ConfirmResult) error {
	paymentID := payment.ID
	actor := &outbox.ActorRef{UserID: payment.UserID, ClubID: &payment.ClubID, Role: enums.RoleMember}

	switch payment.Kind {
	case enums.PaymentKindMembership:
		membership := &models.Membership{
			UserID:    payment.UserID,
			ClubID:    payment.ClubID,
			Status:    enums.MembershipStatusActive,
			PaymentID: &paymentID,
			CreatedAt: now,
		}
		if e.membershipTerm > 0 {
			expires := now.Add(e.membershipTerm)
			membership.ExpiresAt = &expires
		}
		if err := e.memberships.CreateTx(ctx, tx, membership); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		result.Membership = membership
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipCreated,
			AggregateType: enums.AggregateMembership,
			AggregateID:   membership.ID,
			Actor:         actor,
			Data: payloads.MembershipCreatedEvent{
				MembershipID: membership.ID,
				UserID:       membership.UserID,
				ClubID:       membership.ClubID,
				PaymentID:    &paymentID,
				ExpiresAt:    membership.ExpiresAt,
			},
		})

	case enums.PaymentKindEvent:
		registration := &models.EventRegistration{
			UserID:       payment.UserID,
			EventID:      *payment.EventID,
			ClubID:       payment.ClubID,
			Status:       enums.RegistrationStatusRegistered,
			PaymentID:    &paymentID,
			RegisteredAt: now,
		}
		if err := e.registrations.CreateTx(ctx, tx, registration); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		result.Registration = registration
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationCreated,
			AggregateType: enums.AggregateRegistration,
			AggregateID:   registration.ID,
			Actor:         actor,
			Data: payloads.RegistrationCreatedEvent{
				RegistrationID: registration.ID,
				UserID:         registration.UserID,
				EventID:        registration.EventID,
				ClubID:         registration.ClubID,
				PaymentID:      &paymentID,
			},
		})
	}
	return fmt.Errorf("unknown payment kind %q", payment.Kind)
}

func (e *Engine) fail(ctx context.Context, paymentID uuid.UUID, intent *Intent, source string) (*ConfirmResult, error) {
	var (
		payment *models.Payment
		replay  bool
	)
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		payment = locked
		if locked.Status != enums.PaymentStatusPending {
			replay = true
			return nil
		}
		reason := failureReason(intent)
		locked.Status = enums.PaymentStatusFailed
		locked.FailureReason = &reason
		locked.GatewaySnapshot = snapshot(intent, e.now())
		if err := repo.SaveOutcome(ctx, locked); err != nil {
			return err
		}
		return e.outbox.Emit(ctx, tx, e.paymentEvent(enums.EventPaymentFailed, locked, reason))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment failure")
	}
	if replay {
		return e.settledResult(ctx, payment)
	}

	e.metrics.IncSettlement(source, "failed")
	logCtx := e.logg.WithFields(ctx, map[string]any{"payment_id": paymentID.String(), "intent_id": intent.ID, "source": source})
	e.logg.Info(logCtx, "payment failed at gateway")
	return nil, paymentFailedError(payment)
}

// settledResult answers for a payment that already left pending.
func (e *Engine) settledResult(ctx context.Context, payment *models.Payment) (*ConfirmResult, error) {
	switch {
	case payment.FlaggedForRefund:
		return nil, unattachedError(payment)
	case payment.Status == enums.PaymentStatusFailed:
		return nil, paymentFailedError(payment)
	case payment.Status != enums.PaymentStatusSuccess:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed").WithRetryAfter(notCompletedRetryAfter)
	}

	result := &ConfirmResult{Payment: payment}
	switch payment.Kind {
	case enums.PaymentKindMembership:
		membership, err := e.memberships.FindByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership for payment")
		}
		result.Membership = membership
	case enums.PaymentKindEvent:
		registration, err := e.registrations.FindByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load registration for payment")
		}
		result.Registration = registration
	}
	return result, nil
}

func (e *Engine) paymentEvent(eventType enums.OutboxEventType, payment *models.Payment, reason string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         &outbox.ActorRef{UserID: payment.UserID, ClubID: &payment.ClubID, Role: enums.RoleMember},
		Data: payloads.PaymentEvent{
			PaymentID:        payment.ID,
			UserID:           payment.UserID,
			Kind:             payment.Kind,
			ClubID:           payment.ClubID,
			EventID:          payment.EventID,
			AmountCents:      payment.AmountCents,
			Currency:         payment.Currency,
			ExternalRef:      payment.ExternalRef,
			Status:           payment.Status,
			FlaggedForRefund: payment.FlaggedForRefund,
			Reason:           reason,
		},
	}
}

// IsSettledOutcome reports whether err is a final answer for the payment rather
// than a failure to process it.
func IsSettledOutcome(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodePaymentFailed, pkgerrors.CodeAlreadyEnrolled, pkgerrors.CodeEventFull, pkgerrors.CodeAmountMismatch:
		return true
	}
	return false
}

func unattachedReason(code pkgerrors.Code) string {
	if code == pkgerrors.CodeEventFull {
		return reasonEventFull
	}
	return reasonAlreadyEnrolled
}

func unattachedError(payment *models.Payment) error {
	details := map[string]any{"paymentId": payment.ID, "flaggedForRefund": true}
	var reason string
	if payment.FailureReason != nil {
		reason = *payment.FailureReason
		details["reason"] = reason
	}
	switch reason {
	case reasonEventFull:
		return pkgerrors.New(pkgerrors.CodeEventFull, "event filled before payment settled").WithDetails(details)
	case reasonAmountMismatch:
		return pkgerrors.New(pkgerrors.CodeAmountMismatch, "gateway amount does not match payment; flagged for refund").WithDetails(details)
	case reasonLateSuccess:
		return pkgerrors.New(pkgerrors.CodePaymentFailed, "payment had already failed; late charge flagged for refund").WithDetails(details)
	}
	return pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "already enrolled; payment flagged for refund").WithDetails(details)
}

func paymentFailedError(payment *models.Payment) error {
	details := map[string]any{"paymentId": payment.ID}
	if payment.FailureReason != nil {
		details["reason"] = *payment.FailureReason
	}
	return pkgerrors.New(pkgerrors.CodePaymentFailed, "payment failed").WithDetails(details)
}

func failureReason(intent *Intent) string {
	if msg := strings.TrimSpace(intent.FailureMessage); msg != "" {
		return msg
	}
	return "gateway status " + string(intent.Status)
}

func gatewayError(err error, action string) error {
	if errors.Is(err, ErrIntentNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment intent not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func notFoundOr(err error, notFound, action string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

type gatewaySnapshot struct {
	IntentID       string       `json:"intentId"`
	Status         IntentStatus `json:"status"`
	AmountCents    int64        `json:"amountCents"`
	Currency       string       `json:"currency"`
	FailureMessage string       `json:"failureMessage,omitempty"`
	ObservedAt     time.Time    `json:"observedAt"`
}

func snapshot(intent *Intent, at time.Time) datatypes.JSON {
	raw, err := json.Marshal(gatewaySnapshot{
		IntentID:       intent.ID,
		Status:         intent.Status,
		AmountCents:    intent.AmountCents,
		Currency:       intent.Currency,
		FailureMessage: intent.FailureMessage,
		ObservedAt:     at.UTC(),
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
