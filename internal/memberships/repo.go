package memberships

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Repository exposes membership persistence operations. Methods suffixed Tx run
// on the caller's transaction so the payment engine can share it.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// HasActiveTx reports whether the user holds an active membership of the club.
func (r *Repository) HasActiveTx(ctx context.Context, tx *gorm.DB, userID, clubID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND club_id = ? AND status = ?", userID, clubID, enums.MembershipStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasActive is HasActiveTx on the repository's own connection.
func (r *Repository) HasActive(ctx context.Context, userID, clubID uuid.UUID) (bool, error) {
	return r.HasActiveTx(ctx, r.db, userID, clubID)
}

// CreateTx inserts the membership. The active partial unique index rejects duplicates.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, membership *models.Membership) error {
	return tx.WithContext(ctx).Create(membership).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindByPaymentID returns the membership a successful payment created.
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// MarkExpiredTx flips an active membership to expired. It reports false when the
// row was no longer active.
func (r *Repository) MarkExpiredTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ? AND status = ?", id, enums.MembershipStatusActive).
		Updates(map[string]any{
			"status":     enums.MembershipStatusExpired,
			"expired_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListExpiring returns active memberships whose term ended at or before now.
func (r *Repository) ListExpiring(ctx context.Context, now time.Time, limit int) ([]models.Membership, error) {
	var rows []models.Membership
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.MembershipStatusActive, now.UTC()).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByUser returns the user's memberships joined with club metadata, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, status *enums.MembershipStatus) ([]MembershipWithClub, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Select("memberships.*, clubs.name AS club_name, clubs.category AS club_category").
		Joins("JOIN clubs ON clubs.id = memberships.club_id").
		Where("memberships.user_id = ?", userID)
	if status != nil {
		query = query.Where("memberships.status = ?", *status)
	}

	var rows []membershipWithClubRow
	if err := query.Order("memberships.created_at DESC, memberships.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return membershipRowsToDTO(rows), nil
}

// ListByClub returns the club's memberships, newest first.
func (r *Repository) ListByClub(ctx context.Context, clubID uuid.UUID, status *enums.MembershipStatus) ([]models.Membership, error) {
	query := r.db.WithContext(ctx).Where("club_id = ?", clubID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Membership
	err := query.Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}
