package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/memberships"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/internal/registrations"
	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	dbpkg "github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/money"
	"github.com/clubsphere/clubsphere-backend/pkg/pagination"
)

type clubReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]models.Club, error)
}

type membershipLister interface {
	ListMine(ctx context.Context, actor auth.Actor, activeOnly bool) ([]memberships.MembershipWithClub, error)
	ListClubMembers(ctx context.Context, actor auth.Actor, clubID uuid.UUID) ([]models.Membership, error)
}

type registrationLister interface {
	ListMine(ctx context.Context, actor auth.Actor, upcomingOnly bool) ([]registrations.RegistrationWithEvent, error)
	ListEventRegistrations(ctx context.Context, actor auth.Actor, eventID uuid.UUID) ([]models.EventRegistration, error)
}

type paymentLister interface {
	List(ctx context.Context, filter payments.ListFilter) ([]models.Payment, *pagination.Cursor, error)
}

// PageRequest carries the cursor parameters of a payment listing.
type PageRequest struct {
	Status string
	Limit  int
	Cursor string
}

// Service builds the role-scoped dashboards. Every call is read only and fails
// as a whole when any of its queries fails.
type Service interface {
	Overview(ctx context.Context, actor auth.Actor, role enums.Role) (any, error)
	MemberOverview(ctx context.Context, actor auth.Actor) (*MemberOverview, error)
	ManagerOverview(ctx context.Context, actor auth.Actor) (*ManagerOverview, error)
	AdminOverview(ctx context.Context, actor auth.Actor) (*AdminOverview, error)

	MemberClubs(ctx context.Context, actor auth.Actor) ([]memberships.MembershipWithClub, error)
	MemberEvents(ctx context.Context, actor auth.Actor) ([]registrations.RegistrationWithEvent, error)
	MemberPayments(ctx context.Context, actor auth.Actor, page PageRequest) (*PaymentPage, error)
	ClubMembers(ctx context.Context, actor auth.Actor, clubID uuid.UUID) ([]memberships.MembershipDTO, error)
	ClubPayments(ctx context.Context, actor auth.Actor, clubID uuid.UUID, page PageRequest) (*PaymentPage, error)
	EventRegistrations(ctx context.Context, actor auth.Actor, eventID uuid.UUID) ([]registrations.RegistrationDTO, error)
	AdminPayments(ctx context.Context, actor auth.Actor, page PageRequest) (*PaymentPage, error)
}

type ServiceParams struct {
	Repo          Repository
	Clubs         clubReader
	Memberships   membershipLister
	Registrations registrationLister
	Payments      paymentLister
	Currency      string
	Now           func() time.Time
}

type service struct {
	repo          Repository
	clubs         clubReader
	memberships   membershipLister
	registrations registrationLister
	payments      paymentLister
	currency      string
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Clubs == nil || params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dashboard dependencies required")
	}
	if params.Memberships == nil || params.Registrations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership and registration services required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repo,
		clubs:         params.Clubs,
		memberships:   params.Memberships,
		registrations: params.Registrations,
		payments:      params.Payments,
		currency:      currency,
		now:           now,
	}, nil
}

// Overview dispatches on the requested role. Callers may only ask for their own
// role unless they are admins.
func (s *service) Overview(ctx context.Context, actor auth.Actor, role enums.Role) (any, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if role != actor.Role && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dashboard role does not match caller")
	}
	switch role {
	case enums.RoleMember:
		return s.MemberOverview(ctx, actor)
	case enums.RoleManager:
		return s.ManagerOverview(ctx, actor)
	case enums.RoleAdmin:
		return s.AdminOverview(ctx, actor)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dashboard role")
}

func (s *service) MemberOverview(ctx context.Context, actor auth.Actor) (*MemberOverview, error) {
	var (
		out    MemberOverview
		totals []StatusTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountActiveMemberships(gctx, actor.UserID)
		out.ActiveMemberships = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountUpcomingRegistrations(gctx, actor.UserID, s.now())
		out.UpcomingEvents = n
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.PaymentTotals(gctx, PaymentScope{UserID: &actor.UserID})
		totals = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "member overview")
	}

	count, cents := successTotals(totals, nil)
	out.SuccessfulPayments = count
	out.TotalPaid = money.NewAmount(cents, s.currency)
	return &out, nil
}

func (s *service) ManagerOverview(ctx context.Context, actor auth.Actor) (*ManagerOverview, error) {
	owned, err := s.clubs.ListByManager(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list managed clubs")
	}
	ids := make([]uuid.UUID, 0, len(owned))
	for _, club := range owned {
		ids = append(ids, club.ID)
	}

	var (
		members []ClubStatusCount
		events  []ClubEventCount
		totals  []StatusTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = s.repo.MembershipCounts(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		events, err = s.repo.EventCounts(gctx, ids, s.now())
		return err
	})
	g.Go(func() (err error) {
		totals, err = s.repo.PaymentTotals(gctx, PaymentScope{ClubIDs: ids})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "manager overview")
	}

	out := &ManagerOverview{Clubs: make([]ClubStats, 0, len(owned))}
	var revenue int64
	for _, club := range owned {
		stats := ClubStats{ClubID: club.ID, Name: club.Name, Status: club.Status}
		for _, row := range members {
			if row.ClubID != club.ID {
				continue
			}
			switch row.Status {
			case enums.MembershipStatusActive:
				stats.ActiveMembers += row.Count
			case enums.MembershipStatusExpired:
				stats.ExpiredMembers += row.Count
			}
		}
		for _, row := range events {
			if row.ClubID == club.ID {
				stats.Events = row.Total
				stats.UpcomingEvents = row.Upcoming
			}
		}
		clubID := club.ID
		count, cents := successTotals(totals, &clubID)
		stats.SuccessfulPayments = count
		stats.Revenue = money.NewAmount(cents, s.currency)
		out.Clubs = append(out.Clubs, stats)

		out.Totals.ActiveMembers += stats.ActiveMembers
		out.Totals.ExpiredMembers += stats.ExpiredMembers
		out.Totals.Events += stats.Events
		out.Totals.UpcomingEvents += stats.UpcomingEvents
		out.Totals.SuccessfulPayments += count
		revenue = money.Sum(revenue, cents)
	}
	out.Totals.Revenue = money.NewAmount(revenue, s.currency)
	return out, nil
}

func (s *service) AdminOverview(ctx context.Context, actor auth.Actor) (*AdminOverview, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin only")
	}

	var (
		out        AdminOverview
		clubRows   []StatusTotal
		memberRows []ClubStatusCount
		eventRows  []ClubEventCount
		payRows    []StatusTotal
		pending    []models.Club
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		clubRows, err = s.repo.ClubCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Users, err = s.repo.CountDistinctUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		memberRows, err = s.repo.MembershipCounts(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		eventRows, err = s.repo.EventCounts(gctx, nil, s.now())
		return err
	})
	g.Go(func() (err error) {
		payRows, err = s.repo.PaymentTotals(gctx, PaymentScope{})
		return err
	})
	g.Go(func() (err error) {
		out.FlaggedForRefund, err = s.repo.CountFlaggedForRefund(gctx)
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.repo.PendingClubs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "admin overview")
	}

	out.Clubs = newStatusCounts(enums.ClubStatusPending, enums.ClubStatusApproved, enums.ClubStatusRejected)
	for _, row := range clubRows {
		out.Clubs[row.Status] += row.Count
	}
	out.Memberships = newStatusCounts(enums.MembershipStatusActive, enums.MembershipStatusExpired)
	for _, row := range memberRows {
		out.Memberships[string(row.Status)] += row.Count
	}
	for _, row := range eventRows {
		out.Events += row.Total
	}
	out.Payments = newStatusCounts(enums.PaymentStatusPending, enums.PaymentStatusSuccess, enums.PaymentStatusFailed)
	for _, row := range payRows {
		out.Payments[row.Status] += row.Count
	}
	_, cents := successTotals(payRows, nil)
	out.Revenue = money.NewAmount(cents, s.currency)
	out.PendingApprovals = clubs.NewClubDTOs(pending)
	return &out, nil
}

func (s *service) MemberClubs(ctx context.Context, actor auth.Actor) ([]memberships.MembershipWithClub, error) {
	return s.memberships.ListMine(ctx, actor, true)
}

func (s *service) MemberEvents(ctx context.Context, actor auth.Actor) ([]registrations.RegistrationWithEvent, error) {
	return s.registrations.ListMine(ctx, actor, false)
}

func (s *service) MemberPayments(ctx context.Context, actor auth.Actor, page PageRequest) (*PaymentPage, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.listPayments(ctx, payments.ListFilter{UserID: &actor.UserID}, page)
}

func (s *service) ClubMembers(ctx context.Context, actor auth.Actor, clubID uuid.UUID) ([]memberships.MembershipDTO, error) {
	rows, err := s.memberships.ListClubMembers(ctx, actor, clubID)
	if err != nil {
		return nil, err
	}
	return memberships.NewMembershipDTOs(rows), nil
}

func (s *service) ClubPayments(ctx context.Context, actor auth.Actor, clubID uuid.UUID, page PageRequest) (*PaymentPage, error) {
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load club")
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can view its payments")
	}
	return s.listPayments(ctx, payments.ListFilter{ClubID: &club.ID}, page)
}

func (s *service) EventRegistrations(ctx context.Context, actor auth.Actor, eventID uuid.UUID) ([]registrations.RegistrationDTO, error) {
	rows, err := s.registrations.ListEventRegistrations(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	return registrations.NewRegistrationDTOs(rows), nil
}

func (s *service) AdminPayments(ctx context.Context, actor auth.Actor, page PageRequest) (*PaymentPage, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin only")
	}
	return s.listPayments(ctx, payments.ListFilter{}, page)
}

func (s *service) listPayments(ctx context.Context, filter payments.ListFilter, page PageRequest) (*PaymentPage, error) {
	if page.Status != "" {
		status, err := enums.ParsePaymentStatus(page.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}
	if page.Cursor != "" {
		cursor, err := pagination.ParseCursor(page.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}
	filter.Limit = page.Limit

	rows, next, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	out := &PaymentPage{Items: payments.NewPaymentDTOs(rows)}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// successTotals sums successful payments, optionally for a single club.
func successTotals(rows []StatusTotal, clubID *uuid.UUID) (int64, int64) {
	var (
		count int64
		cents int64
	)
	for _, row := range rows {
		if row.Status != string(enums.PaymentStatusSuccess) {
			continue
		}
		if clubID != nil && row.ClubID != *clubID {
			continue
		}
		count += row.Count
		cents = money.Sum(cents, row.AmountCents)
	}
	return count, cents
}
