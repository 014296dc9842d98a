package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// EventRegistration records a user's seat at an event. Cancellation keeps the row.
type EventRegistration struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	EventID      uuid.UUID                `gorm:"column:event_id;type:uuid;not null"`
	ClubID       uuid.UUID                `gorm:"column:club_id;type:uuid;not null"`
	Status       enums.RegistrationStatus `gorm:"column:status;type:registration_status;not null;default:'registered'"`
	PaymentID    *uuid.UUID               `gorm:"column:payment_id;type:uuid"`
	RegisteredAt time.Time                `gorm:"column:registered_at;autoCreateTime"`
	CancelledAt  *time.Time               `gorm:"column:cancelled_at"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (EventRegistration) TableName() string {
	return "event_registrations"
}

func (r *EventRegistration) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
