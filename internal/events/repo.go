package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Repository persists club events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)
	ListByClub(ctx context.Context, clubID uuid.UUID, from *time.Time) ([]models.Event, error)
	UsageTx(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (Usage, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, event *models.Event) error
}

// Usage is what an edit has to respect: seats taken and event payments that
// have not settled yet.
type Usage struct {
	Registered      int64
	PendingPayments int64
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

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByIDForUpdate row-locks the event; registration counts are taken under this lock.
func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByClub returns events ordered by date. A non-nil from drops events before it.
func (r *repository) ListByClub(ctx context.Context, clubID uuid.UUID, from *time.Time) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Where("club_id = ?", clubID)
	if from != nil {
		query = query.Where("event_date >= ?", from.UTC())
	}
	var rows []models.Event
	err := query.Order("event_date ASC, id ASC").Find(&rows).Error
	return rows, err
}

// UsageTx counts under the caller's event lock so registrations and intents
// racing the edit are either seen here or see the edited row.
func (r *repository) UsageTx(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (Usage, error) {
	var usage Usage
	err := tx.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Where("event_id = ? AND status = ?", eventID, enums.RegistrationStatusRegistered).
		Count(&usage.Registered).Error
	if err != nil {
		return usage, err
	}
	err = tx.WithContext(ctx).
		Model(&models.Payment{}).
		Where("event_id = ? AND kind = ? AND status = ?", eventID, enums.PaymentKindEvent, enums.PaymentStatusPending).
		Count(&usage.PendingPayments).Error
	return usage, err
}

func (r *repository) UpdateTx(ctx context.Context, tx *gorm.DB, event *models.Event) error {
	return tx.WithContext(ctx).
		Model(event).
		Select("title", "description", "location", "event_date", "is_paid", "event_fee_cents", "max_attendees", "updated_at").
		Updates(event).Error
}
