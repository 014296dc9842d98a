package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Repository persists event registrations. Tx-suffixed methods share the caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HasRegisteredTx(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Where("user_id = ? AND event_id = ? AND status = ?", userID, eventID, enums.RegistrationStatusRegistered).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) HasRegistered(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	return r.HasRegisteredTx(ctx, r.db, userID, eventID)
}

// CountRegisteredTx counts live seats. Call it under the event row lock.
func (r *Repository) CountRegisteredTx(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Where("event_id = ? AND status = ?", eventID, enums.RegistrationStatusRegistered).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountRegistered(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return r.CountRegisteredTx(ctx, r.db, eventID)
}

func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, registration *models.EventRegistration) error {
	return tx.WithContext(ctx).Create(registration).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// MarkCancelledTx reports false when the registration was not in registered state.
func (r *Repository) MarkCancelledTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Where("id = ? AND status = ?", id, enums.RegistrationStatusRegistered).
		Updates(map[string]any{
			"status":       enums.RegistrationStatusCancelled,
			"cancelled_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type registrationWithEventRow struct {
	models.EventRegistration
	EventTitle string    `gorm:"column:event_title"`
	EventDate  time.Time `gorm:"column:event_date"`
	ClubName   string    `gorm:"column:club_name"`
}

// ListByUser joins event and club metadata. A non-nil from keeps only events on or after it.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, status *enums.RegistrationStatus, from *time.Time) ([]RegistrationWithEvent, error) {
	query := r.db.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Select("event_registrations.*, events.title AS event_title, events.event_date AS event_date, clubs.name AS club_name").
		Joins("JOIN events ON events.id = event_registrations.event_id").
		Joins("JOIN clubs ON clubs.id = event_registrations.club_id").
		Where("event_registrations.user_id = ?", userID)
	if status != nil {
		query = query.Where("event_registrations.status = ?", *status)
	}
	if from != nil {
		query = query.Where("events.event_date >= ?", from.UTC())
	}

	var rows []registrationWithEventRow
	if err := query.Order("events.event_date ASC, event_registrations.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]RegistrationWithEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, RegistrationWithEvent{
			RegistrationDTO: NewRegistrationDTO(row.EventRegistration),
			EventTitle:      row.EventTitle,
			EventDate:       row.EventDate,
			ClubName:        row.ClubName,
		})
	}
	return out, nil
}

// ListByEvent returns registrations of every status in sign-up order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventRegistration, error) {
	var rows []models.EventRegistration
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("registered_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
