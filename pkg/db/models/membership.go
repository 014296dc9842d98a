package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Membership links a user to a club. Rows are never deleted; expiry is a status change.
type Membership struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	ClubID    uuid.UUID              `gorm:"column:club_id;type:uuid;not null"`
	Status    enums.MembershipStatus `gorm:"column:status;type:membership_status;not null;default:'active'"`
	PaymentID *uuid.UUID             `gorm:"column:payment_id;type:uuid"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt *time.Time             `gorm:"column:expires_at"`
	ExpiredAt *time.Time             `gorm:"column:expired_at"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
