package memberships

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
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
)

type clubStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Club, error)
}

type intentCreator interface {
	CreateIntent(ctx context.Context, actor auth.Actor, input payments.CreateIntentInput) (*payments.IntentResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the membership lifecycle: joining, manual expiry and the scheduled sweep.
type Service interface {
	Join(ctx context.Context, actor auth.Actor, clubID uuid.UUID) (*models.Membership, error)
	Expire(ctx context.Context, actor auth.Actor, membershipID uuid.UUID) (*models.Membership, error)
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
	ListMine(ctx context.Context, actor auth.Actor, activeOnly bool) ([]MembershipWithClub, error)
	ListClubMembers(ctx context.Context, actor auth.Actor, clubID uuid.UUID) ([]models.Membership, error)
}

type ServiceParams struct {
	Repo     *Repository
	Clubs    clubStore
	Payments intentCreator
	Tx       txRunner
	Outbox   outbox.Emitter
	Logger   *logger.Logger
	Term     time.Duration
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	clubs    clubStore
	payments intentCreator
	tx       txRunner
	outbox   outbox.Emitter
	logg     *logger.Logger
	term     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership repository required")
	}
	if params.Clubs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club store required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment engine required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		clubs:    params.Clubs,
		payments: params.Payments,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		term:     params.Term,
		now:      now,
	}, nil
}

// Join creates an active membership for free clubs. Paid clubs get a payment
// intent back inside a PAYMENT_REQUIRED error; the membership is created on confirm.
func (s *service) Join(ctx context.Context, actor auth.Actor, clubID uuid.UUID) (*models.Membership, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if clubID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "clubId is required")
	}

	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		return nil, notFoundOr(err, "club not found", "load club")
	}
	if club.Status != enums.ClubStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeClubNotApproved, "club is not approved")
	}

	if !club.IsFree() {
		active, err := s.repo.HasActive(ctx, actor.UserID, club.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
		}
		if active {
			return nil, alreadyMember()
		}
		intent, err := s.payments.CreateIntent(ctx, actor, payments.CreateIntentInput{
			Kind:     enums.PaymentKindMembership,
			TargetID: club.ID,
		})
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "membership fee required").WithDetails(intent)
	}

	var membership *models.Membership
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.clubs.FindByIDForUpdate(ctx, tx, club.ID)
		if err != nil {
			return notFoundOr(err, "club not found", "lock club")
		}
		if locked.Status != enums.ClubStatusApproved {
			return pkgerrors.New(pkgerrors.CodeClubNotApproved, "club is not approved")
		}
		active, err := s.repo.HasActiveTx(ctx, tx, actor.UserID, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
		}
		if active {
			return alreadyMember()
		}

		now := s.now()
		membership = &models.Membership{
			UserID:    actor.UserID,
			ClubID:    locked.ID,
			Status:    enums.MembershipStatusActive,
			CreatedAt: now,
		}
		if s.term > 0 {
			expires := now.Add(s.term)
			membership.ExpiresAt = &expires
		}
		if err := s.repo.CreateTx(ctx, tx, membership); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_memberships_active_user_club") {
				return alreadyMember()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipCreated,
			AggregateType: enums.AggregateMembership,
			AggregateID:   membership.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ClubID: &locked.ID, Role: actor.Role},
			Data: payloads.MembershipCreatedEvent{
				MembershipID: membership.ID,
				UserID:       membership.UserID,
				ClubID:       membership.ClubID,
				ExpiresAt:    membership.ExpiresAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// Expire is allowed for the club's manager or an admin. Expiring an expired
// membership returns it unchanged.
func (s *service) Expire(ctx context.Context, actor auth.Actor, membershipID uuid.UUID) (*models.Membership, error) {
	current, err := s.repo.FindByID(ctx, membershipID)
	if err != nil {
		return nil, notFoundOr(err, "membership not found", "load membership")
	}
	club, err := s.clubs.FindByID(ctx, current.ClubID)
	if err != nil {
		return nil, notFoundOr(err, "club not found", "load club")
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can expire memberships")
	}

	var out *models.Membership
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, membershipID)
		if err != nil {
			return notFoundOr(err, "membership not found", "lock membership")
		}
		out = locked
		if locked.Status == enums.MembershipStatusExpired {
			return nil
		}
		return s.expireLocked(ctx, tx, locked, &actor, false)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepExpired expires active memberships whose term ended. It returns how many
// rows it expired.
func (s *service) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	due, err := s.repo.ListExpiring(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring memberships")
	}

	expired := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		id := due[i].ID
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			locked, err := s.repo.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if !locked.Status.IsActive() {
				return nil
			}
			changed = true
			return s.expireAt(ctx, tx, locked, nil, true, now)
		})
		if err != nil {
			logCtx := s.logg.WithField(ctx, "membership_id", id.String())
			s.logg.Error(logCtx, "failed to expire membership", err)
			return expired, err
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

func (s *service) expireLocked(ctx context.Context, tx *gorm.DB, m *models.Membership, actor *auth.Actor, scheduled bool) error {
	return s.expireAt(ctx, tx, m, actor, scheduled, s.now())
}

func (s *service) expireAt(ctx context.Context, tx *gorm.DB, m *models.Membership, actor *auth.Actor, scheduled bool, at time.Time) error {
	changed, err := s.repo.MarkExpiredTx(ctx, tx, m.ID, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire membership")
	}
	if !changed {
		return nil
	}
	m.Status = enums.MembershipStatusExpired
	expiredAt := at.UTC()
	m.ExpiredAt = &expiredAt

	ref := &outbox.ActorRef{UserID: m.UserID, ClubID: &m.ClubID, Role: enums.RoleMember}
	if actor != nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, ClubID: &m.ClubID, Role: actor.Role}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMembershipExpired,
		AggregateType: enums.AggregateMembership,
		AggregateID:   m.ID,
		Actor:         ref,
		Data: payloads.MembershipExpiredEvent{
			MembershipID: m.ID,
			UserID:       m.UserID,
			ClubID:       m.ClubID,
			ExpiredAt:    expiredAt,
			Scheduled:    scheduled,
		},
	})
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, activeOnly bool) ([]MembershipWithClub, error) {
	var status *enums.MembershipStatus
	if activeOnly {
		active := enums.MembershipStatusActive
		status = &active
	}
	rows, err := s.repo.ListByUser(ctx, actor.UserID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	return rows, nil
}

func (s *service) ListClubMembers(ctx context.Context, actor auth.Actor, clubID uuid.UUID) ([]models.Membership, error) {
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		return nil, notFoundOr(err, "club not found", "load club")
	}
	if !clubs.CanManage(actor, club) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the club manager can list members")
	}
	rows, err := s.repo.ListByClub(ctx, club.ID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list club members")
	}
	return rows, nil
}

func alreadyMember() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyMember, "already a member of this club")
}

func notFoundOr(err error, notFound, action string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
