package clubs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/auth"
	dbpkg "github.com/clubsphere/clubsphere-backend/pkg/db"
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	pkgerrors "github.com/clubsphere/clubsphere-backend/pkg/errors"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox"
	"github.com/clubsphere/clubsphere-backend/pkg/outbox/payloads"
	"github.com/clubsphere/clubsphere-backend/pkg/pagination"
)

const maxNameLength = 120

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers club creation, catalogue reads and admin moderation.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateClubInput) (*models.Club, error)
	Get(ctx context.Context, actor *auth.Actor, clubID uuid.UUID) (*models.Club, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ChangeStatus(ctx context.Context, actor auth.Actor, clubID uuid.UUID, status enums.ClubStatus) (*models.Club, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outbox.Emitter
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{repo: params.Repo, tx: params.Tx, outbox: params.Outbox}, nil
}

// CanManage reports whether the actor may administer the club's members and events.
func CanManage(actor auth.Actor, club *models.Club) bool {
	if club == nil {
		return false
	}
	return actor.IsAdmin() || club.ManagerID == actor.UserID
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateClubInput) (*models.Club, error) {
	if actor.Role != enums.RoleManager && actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can create clubs")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is too long")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.MembershipFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "membership fee must be non-negative")
	}

	club := &models.Club{
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		Category:           input.Category,
		Location:           strings.TrimSpace(input.Location),
		BannerImage:        input.BannerImage,
		ManagerID:          actor.UserID,
		MembershipFeeCents: input.MembershipFeeCents,
		Status:             enums.ClubStatusPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, club); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create club")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubCreated,
			AggregateType: enums.AggregateClub,
			AggregateID:   club.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ClubID: &club.ID, Role: actor.Role},
			Data: payloads.ClubCreatedEvent{
				ClubID:    club.ID,
				ManagerID: club.ManagerID,
				Name:      club.Name,
				Category:  club.Category,
				Status:    club.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return club, nil
}

// Get returns approved clubs to anyone; other states only to the manager or an admin.
func (s *service) Get(ctx context.Context, actor *auth.Actor, clubID uuid.UUID) (*models.Club, error) {
	if clubID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "club id required")
	}
	club, err := s.repo.FindByID(ctx, clubID)
	if err != nil {
		return nil, notFoundOr(err, "load club")
	}
	if club.Status == enums.ClubStatusApproved {
		return club, nil
	}
	if actor != nil && CanManage(*actor, club) {
		return club, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	sort, ok := ParseSortOrder(params.Sort)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort").
			WithDetails(map[string]any{"allowed": []SortOrder{SortNewest, SortOldest, SortHighestFee, SortLowestFee}})
	}
	query := listClubsParams{
		Search: params.Search,
		Sort:   sort,
		Limit:  params.Limit,
	}
	if params.Category != "" {
		category, err := enums.ParseClubCategory(params.Category)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		query.Category = &category
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListApproved(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list clubs")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: NewClubDTOs(rows), Cursor: cursor}, nil
}

// ChangeStatus applies an admin moderation decision. Existing memberships are
// left as they are, including when an approved club is rejected.
func (s *service) ChangeStatus(ctx context.Context, actor auth.Actor, clubID uuid.UUID, status enums.ClubStatus) (*models.Club, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if status != enums.ClubStatusApproved && status != enums.ClubStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}

	var updated *models.Club
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		club, err := repo.FindByIDForUpdate(ctx, tx, clubID)
		if err != nil {
			return notFoundOr(err, "lock club")
		}
		if !club.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal club status transition").
				WithDetails(map[string]any{"from": club.Status, "to": status})
		}
		from := club.Status
		if err := repo.UpdateStatus(ctx, club.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update club status")
		}
		club.Status = status
		updated = club
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubStatusChanged,
			AggregateType: enums.AggregateClub,
			AggregateID:   club.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ClubID: &club.ID, Role: actor.Role},
			Data: payloads.ClubStatusChangedEvent{
				ClubID:    club.ID,
				ManagerID: club.ManagerID,
				From:      from,
				To:        status,
				ChangedBy: actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func notFoundOr(err error, action string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
