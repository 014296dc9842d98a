package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	dbpkg "github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
)

type eventStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)
}

type clubReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

type intentCreator interface {
	CreateIntent(ctx context.Context, actor auth.Actor, input payments.CreateIntentInput) (*payments.IntentResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service registers members for events and cancels registrations.
type Service interface {
	Register(ctx context.Context, actor auth.Actor, eventID uuid.UUID) (*models.EventRegistration, error)
	Cancel(ctx context.Context, actor auth.Actor, registrationID uuid.UUID) (*models.EventRegistration, error)
	ListMine(ctx context.Context, actor auth.Actor, upcomingOnly bool) ([]RegistrationWithEvent, error)
	ListEventRegistrations(ctx context.Context, actor auth.Actor, eventID uuid.UUID) ([]models.EventRegistration, error)
}

type ServiceParams struct {
	Repo     *Repository
	Events   eventStore
	Clubs    clubReader
	Payments intentCreator
	Tx       txRunner
	Outbox   outbox.Emitter
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	events   eventStore
	clubs    clubReader
	payments intentCreator
	tx       txRunner
	outbox   outbox.Emitter
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "registration repository required")
	case params.Events == nil || params.Clubs == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event and club stores required")
	case params.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment engine required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		events:   params.Events,
		clubs:    params.Clubs,
		payments: params.Payments,
		tx:       params.Tx,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

// Register takes a seat at a free event. Paid events answer PAYMENT_REQUIRED with
// the intent; the seat is only taken when the payment is confirmed.
func (s *service) Register(ctx context.Context, actor auth.Actor, eventID uuid.UUID) (*models.EventRegistration, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "eventId is required")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "load event")
	}
	if err := s.checkOpen(ctx, actor, nil, event, 0); err != nil {
		return nil, err
	}

	if event.FeeCents() > 0 {
		taken, err := s.repo.CountRegistered(ctx, event.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count registrations")
		}
		if event.HasCapacityLimit() && taken >= int64(event.MaxAttendees) {
			return nil, eventFull()
		}
		intent, err := s.payments.CreateIntent(ctx, actor, payments.CreateIntentInput{
			Kind:     enums.PaymentKindEvent,
			TargetID: event.ID,
		})
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "event fee required").WithDetails(intent)
	}

	var registration *models.EventRegistration
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.events.FindByIDForUpdate(ctx, tx, event.ID)
		if err != nil {
			return notFoundOr(err, "event not found", "lock event")
		}
		taken, err := s.repo.CountRegisteredTx(ctx, tx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count registrations")
		}
		if err := s.checkOpen(ctx, actor, tx, locked, taken); err != nil {
			return err
		}

		registration = &models.EventRegistration{
			UserID:       actor.UserID,
			EventID:      locked.ID,
			ClubID:       locked.ClubID,
			Status:       enums.RegistrationStatusRegistered,
			RegisteredAt: s.now(),
		}
		if err := s.repo.CreateTx(ctx, tx, registration); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_event_registrations_active_user_event") {
				return alreadyRegistered()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create registration")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationCreated,
			AggregateType: enums.AggregateRegistration,
			AggregateID:   registration.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ClubID: &locked.ClubID, Role: actor.Role},
			Data: payloads.RegistrationCreatedEvent{
				RegistrationID: registration.ID,
				UserID:         registration.UserID,
				EventID:        registration.EventID,
				ClubID:         registration.ClubID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return registration, nil
}

// checkOpen validates the event is still open to the actor. With a nil tx only the
// date and duplicate checks run; capacity is enforced under the event lock.
func (s *service) checkOpen(ctx context.Context, actor auth.Actor, tx *gorm.DB, event *models.Event, taken int64) error {
	if !event.EventDate.After(s.now()) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "event has already taken place")
	}
	var (
		registered bool
		err        error
	)
	if tx != nil {
		registered, err = s.repo.HasRegisteredTx(ctx, tx, actor.UserID, event.ID)
	} else {
		registered, err = s.repo.HasRegistered(ctx, actor.UserID, event.ID)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check registration")
	}
	if registered {
		return alreadyRegistered()
	}
	if tx != nil && event.HasCapacityLimit() && taken >= int64(event.MaxAttendees) {
		return eventFull()
	}
	return nil
}

// Cancel frees the seat. The owner, the club's manager and admins may cancel.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, registrationID uuid.UUID) (*models.EventRegistration, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	current, err := s.repo.FindByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "load registration")
	}
	if current.UserID != actor.UserID {
		club, err := s.clubs.FindByID(ctx, current.ClubID)
		if err != nil {
			return nil, notFoundOr(err, "club not found", "load club")
		}
		if !clubs.CanManage(actor, club) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot cancel another member's registration")
		}
	}

	var out *models.EventRegistration
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, registrationID)
		if err != nil {
			return notFoundOr(err, "registration not found", "lock registration")
		}
		if locked.Status != enums.RegistrationStatusRegistered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "registration is not active").
				WithDetails(map[string]any{"status": locked.Status})
		}
		at := s.now().UTC()
		changed, err := s.repo.MarkCancelledTx(ctx, tx, locked.ID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel registration")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "registration is not active")
		}
		locked.Status = enums.RegistrationStatusCancelled
		locked.CancelledAt = &at
		out = locked

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationCancelled,
			AggregateType: enums.AggregateRegistration,
			AggregateID:   locked.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ClubID: &locked.ClubID, Role: actor.Role},
			Data: payloads.RegistrationCancelledEvent{
				RegistrationID: locked.ID,
				UserID:         locked.UserID,
				EventID:        locked.EventID,
				ClubID:         locked.ClubID,
				CancelledAt:    at,
				CancelledBy:    actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, upcomingOnly bool) ([]RegistrationWithEvent, error) {
	status := enums.RegistrationStatusRegistered
	var from *time.Time
	if upcomingOnly {
		now := s.now()
		from = &now
	}
	rows, err := s.repo.ListByUser(ctx, actor.UserID, &status, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list registrations")
	}
	return rows, nil
}

// ListEventRegistrations returns every registration of an event, cancelled ones
// included, to the club's manager and admins.
func (s *service) ListEventRegistrations(ctx context.Context, actor auth.Actor, eventID uuid.UUID) ([]models.EventRegistration, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "load event")
	}
	club, err := s.clubs.FindByID(ctx, event.ClubID)
	if err != nil {
		return nil, notFoundOr(err, "club not found", "load club")
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can view registrations")
	}
	rows, err := s.repo.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list event registrations")
	}
	return rows, nil
}

func alreadyRegistered() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyRegistered, "already registered for this event")
}

func eventFull() error {
	return pkgerrors.New(pkgerrors.CodeEventFull, "event is full")
}

func notFoundOr(err error, notFound, action string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
