package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/pagination"
)

// Repository persists payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByExternalRef(ctx context.Context, ref string) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error)
	SaveOutcome(ctx context.Context, payment *models.Payment) error
	FlagForRefund(ctx context.Context, payment *models.Payment) error
	ListReconcilable(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]models.Payment, *pagination.Cursor, error)
}

// ListFilter narrows payment listings. Zero values mean no filter.
type ListFilter struct {
	UserID *uuid.UUID
	ClubID *uuid.UUID
	Status *enums.PaymentStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByExternalRef(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("external_ref = ?", ref).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// SaveOutcome writes the settle or fail columns. Only pending rows are touched.
func (r *repository) SaveOutcome(ctx context.Context, payment *models.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":             payment.Status,
			"flagged_for_refund": payment.FlaggedForRefund,
			"failure_reason":     payment.FailureReason,
			"gateway_snapshot":   payment.GatewaySnapshot,
			"confirmed_at":       payment.ConfirmedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FlagForRefund records money the gateway took that no record absorbed. The
// status column is left alone; a payment is flagged at most once.
func (r *repository) FlagForRefund(ctx context.Context, payment *models.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND flagged_for_refund = ?", payment.ID, false).
		Updates(map[string]any{
			"flagged_for_refund": true,
			"failure_reason":     payment.FailureReason,
			"gateway_snapshot":   payment.GatewaySnapshot,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListReconcilable returns pending payments created inside the window, oldest first.
func (r *repository) ListReconcilable(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ? AND created_at <= ?", enums.PaymentStatusPending, createdAfter.UTC(), createdBefore.UTC()).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Payment, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ClubID != nil {
		query = query.Where("club_id = ?", *filter.ClubID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if c := filter.Cursor; c != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, filter.Limit, func(p models.Payment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}
