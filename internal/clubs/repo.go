package clubs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/pagination"
)

// Repository persists clubs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, club *models.Club) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Club, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ClubStatus) error
	ListApproved(ctx context.Context, params listClubsParams) ([]models.Club, *pagination.Cursor, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]models.Club, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, club *models.Club) error {
	return r.db.WithContext(ctx).Create(club).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	var club models.Club
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&club).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// FindByIDForUpdate row-locks the club for the rest of tx. Every membership
// check-then-insert serializes on this lock.
func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Club, error) {
	var club models.Club
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&club).Error
	if err != nil {
		return nil, err
	}
	return &club, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ClubStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Club{}).
		Where("id = ?", id).
		Update("status", status).Error
}

type listClubsParams struct {
	Search   string
	Category *enums.ClubCategory
	Sort     SortOrder
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repository) ListApproved(ctx context.Context, params listClubsParams) ([]models.Club, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Club{}).Where("status = ?", enums.ClubStatusApproved)
	if term := strings.TrimSpace(params.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if c := params.Cursor; c != nil {
		switch params.Sort {
		case SortOldest:
			query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", c.CreatedAt, c.CreatedAt, c.ID)
		case SortHighestFee:
			query = query.Where("(membership_fee_cents < ? OR (membership_fee_cents = ? AND (created_at < ? OR (created_at = ? AND id < ?))))",
				c.Amount, c.Amount, c.CreatedAt, c.CreatedAt, c.ID)
		case SortLowestFee:
			query = query.Where("(membership_fee_cents > ? OR (membership_fee_cents = ? AND (created_at > ? OR (created_at = ? AND id > ?))))",
				c.Amount, c.Amount, c.CreatedAt, c.CreatedAt, c.ID)
		default:
			query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
		}
	}
	query = query.Order(params.Sort.orderClause())

	var rows []models.Club
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(c models.Club) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID, Amount: c.MembershipFeeCents}
	})
	return page, next, nil
}

func (r *repository) ListByManager(ctx context.Context, managerID uuid.UUID) ([]models.Club, error) {
	var rows []models.Club
	err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}
