package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

const pendingQueueLimit = 25

// Repository runs the read-only aggregate queries behind the dashboards.
type Repository interface {
	CountActiveMemberships(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUpcomingRegistrations(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	PaymentTotals(ctx context.Context, scope PaymentScope) ([]StatusTotal, error)
	MembershipCounts(ctx context.Context, clubIDs []uuid.UUID) ([]ClubStatusCount, error)
	EventCounts(ctx context.Context, clubIDs []uuid.UUID, now time.Time) ([]ClubEventCount, error)
	ClubCounts(ctx context.Context) ([]StatusTotal, error)
	CountDistinctUsers(ctx context.Context) (int64, error)
	CountFlaggedForRefund(ctx context.Context) (int64, error)
	PendingClubs(ctx context.Context) ([]models.Club, error)
}

// PaymentScope narrows payment totals. Nil fields mean no filter; an empty
// ClubIDs slice (non-nil) matches nothing.
type PaymentScope struct {
	UserID  *uuid.UUID
	ClubIDs []uuid.UUID
}

// StatusTotal is one GROUP BY status row. ClubID is set when grouped per club.
type StatusTotal struct {
	ClubID      uuid.UUID `gorm:"column:club_id"`
	Status      string    `gorm:"column:status"`
	Count       int64     `gorm:"column:count"`
	AmountCents int64     `gorm:"column:amount_cents"`
}

type ClubStatusCount struct {
	ClubID uuid.UUID              `gorm:"column:club_id"`
	Status enums.MembershipStatus `gorm:"column:status"`
	Count  int64                  `gorm:"column:count"`
}

type ClubEventCount struct {
	ClubID   uuid.UUID `gorm:"column:club_id"`
	Total    int64     `gorm:"column:total"`
	Upcoming int64     `gorm:"column:upcoming"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountActiveMemberships(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND status = ?", userID, enums.MembershipStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) CountUpcomingRegistrations(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EventRegistration{}).
		Joins("JOIN events ON events.id = event_registrations.event_id").
		Where("event_registrations.user_id = ? AND event_registrations.status = ? AND events.event_date > ?",
			userID, enums.RegistrationStatusRegistered, now.UTC()).
		Count(&count).Error
	return count, err
}

// PaymentTotals groups payments by club and status. Callers sum across clubs when
// they need a single figure.
func (r *repository) PaymentTotals(ctx context.Context, scope PaymentScope) ([]StatusTotal, error) {
	if scope.ClubIDs != nil && len(scope.ClubIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("club_id, status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount_cents")
	if scope.UserID != nil {
		query = query.Where("user_id = ?", *scope.UserID)
	}
	if scope.ClubIDs != nil {
		query = query.Where("club_id IN ?", scope.ClubIDs)
	}
	var rows []StatusTotal
	err := query.Group("club_id, status").Scan(&rows).Error
	return rows, err
}

func (r *repository) MembershipCounts(ctx context.Context, clubIDs []uuid.UUID) ([]ClubStatusCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Select("club_id, status, COUNT(*) AS count")
	if clubIDs != nil {
		if len(clubIDs) == 0 {
			return nil, nil
		}
		query = query.Where("club_id IN ?", clubIDs)
	}
	var rows []ClubStatusCount
	err := query.Group("club_id, status").Scan(&rows).Error
	return rows, err
}

func (r *repository) EventCounts(ctx context.Context, clubIDs []uuid.UUID, now time.Time) ([]ClubEventCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("club_id, COUNT(*) AS total, SUM(CASE WHEN event_date > ? THEN 1 ELSE 0 END) AS upcoming", now.UTC())
	if clubIDs != nil {
		if len(clubIDs) == 0 {
			return nil, nil
		}
		query = query.Where("club_id IN ?", clubIDs)
	}
	var rows []ClubEventCount
	err := query.Group("club_id").Scan(&rows).Error
	return rows, err
}

func (r *repository) ClubCounts(ctx context.Context) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := r.db.WithContext(ctx).
		Model(&models.Club{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// CountDistinctUsers counts users seen in memberships, registrations or
// payments. There is no users table; identities live with the auth provider.
func (r *repository) CountDistinctUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM (
			SELECT user_id FROM memberships
			UNION
			SELECT user_id FROM event_registrations
			UNION
			SELECT user_id FROM payments
		) AS seen_users`).
		Scan(&count).Error
	return count, err
}

func (r *repository) CountFlaggedForRefund(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("flagged_for_refund = ?", true).
		Count(&count).Error
	return count, err
}

// PendingClubs returns the oldest clubs awaiting approval.
func (r *repository) PendingClubs(ctx context.Context) ([]models.Club, error) {
	var rows []models.Club
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ClubStatusPending).
		Order("created_at ASC, id ASC").
		Limit(pendingQueueLimit).
		Find(&rows).Error
	return rows, err
}
