package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	dbpkg "github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
)

type clubReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates, edits and lists club events.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, clubID uuid.UUID, input CreateEventInput) (*models.Event, error)
	Update(ctx context.Context, actor auth.Actor, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error)
	Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	ListByClub(ctx context.Context, clubID uuid.UUID, upcomingOnly bool) ([]models.Event, error)
}

type ServiceParams struct {
	Repo  Repository
	Clubs clubReader
	Tx    txRunner
	Now   func() time.Time
}

type service struct {
	repo  Repository
	clubs clubReader
	tx    txRunner
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event repository required")
	case params.Clubs == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club reader required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, clubs: params.Clubs, tx: params.Tx, now: now}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, clubID uuid.UUID, input CreateEventInput) (*models.Event, error) {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can create events")
	}
	if club.Status != enums.ClubStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeClubNotApproved, "club is not approved")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.EventDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "eventDate is required")
	}
	if !input.EventDate.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "eventDate must be in the future")
	}
	if input.MaxAttendees < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maxAttendees must be non-negative")
	}
	if input.EventFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "eventFee must be non-negative")
	}
	if input.IsPaid && input.EventFeeCents == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid events need a fee")
	}
	fee := input.EventFeeCents
	if !input.IsPaid {
		fee = 0
	}

	event := &models.Event{
		ClubID:        club.ID,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Location:      strings.TrimSpace(input.Location),
		EventDate:     input.EventDate.UTC(),
		IsPaid:        input.IsPaid,
		EventFeeCents: fee,
		MaxAttendees:  input.MaxAttendees,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create event")
	}
	return event, nil
}

// Update edits an upcoming event. Capacity cannot drop below the seats already
// taken, and the fee is frozen while payments for the event are in flight.
func (s *service) Update(ctx context.Context, actor auth.Actor, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	current, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	club, err := s.loadClub(ctx, current.ClubID)
	if err != nil {
		return nil, err
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can edit events")
	}

	var out *models.Event
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock event")
		}
		if !locked.EventDate.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event has already taken place")
		}

		next := *locked
		if err := s.apply(&next, input); err != nil {
			return err
		}
		usage, err := s.repo.UsageTx(ctx, tx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count event usage")
		}
		if next.HasCapacityLimit() && int64(next.MaxAttendees) < usage.Registered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "maxAttendees is below the registered count").
				WithDetails(map[string]any{"registered": usage.Registered, "maxAttendees": next.MaxAttendees})
		}
		if next.FeeCents() != locked.FeeCents() && usage.PendingPayments > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fee cannot change while payments are pending").
				WithDetails(map[string]any{"pendingPayments": usage.PendingPayments})
		}
		if err := s.repo.UpdateTx(ctx, tx, &next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update event")
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) apply(event *models.Event, input UpdateEventInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
		}
		event.Title = title
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if input.EventDate != nil {
		if !input.EventDate.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeValidation, "eventDate must be in the future")
		}
		event.EventDate = input.EventDate.UTC()
	}
	if input.MaxAttendees != nil {
		if *input.MaxAttendees < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "maxAttendees must be non-negative")
		}
		event.MaxAttendees = *input.MaxAttendees
	}
	if input.IsPaid != nil {
		event.IsPaid = *input.IsPaid
	}
	if input.EventFeeCents != nil {
		if *input.EventFeeCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "eventFee must be non-negative")
		}
		event.EventFeeCents = *input.EventFeeCents
	}
	if event.IsPaid && event.EventFeeCents == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "paid events need a fee")
	}
	if !event.IsPaid {
		event.EventFeeCents = 0
	}
	return nil
}

func (s *service) Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return event, nil
}

// ListByClub is public, so only approved clubs expose their events.
func (s *service) ListByClub(ctx context.Context, clubID uuid.UUID, upcomingOnly bool) ([]models.Event, error) {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if club.Status != enums.ClubStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
	}
	var from *time.Time
	if upcomingOnly {
		now := s.now()
		from = &now
	}
	rows, err := s.repo.ListByClub(ctx, club.ID, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}
	return rows, nil
}

func (s *service) loadClub(ctx context.Context, clubID uuid.UUID) (*models.Club, error) {
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load club")
	}
	return club, nil
}
