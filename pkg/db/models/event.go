package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a club-owned happening members can register for.
type Event struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID        uuid.UUID `gorm:"column:club_id;type:uuid;not null"`
	Title         string    `gorm:"column:title;not null"`
	Description   string    `gorm:"column:description;not null;default:''"`
	Location      string    `gorm:"column:location;not null;default:''"`
	EventDate     time.Time `gorm:"column:event_date;not null"`
	IsPaid        bool      `gorm:"column:is_paid;not null;default:false"`
	EventFeeCents int64     `gorm:"column:event_fee_cents;not null;default:0"`
	MaxAttendees  int       `gorm:"column:max_attendees;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// FeeCents returns the amount a registration costs, zero for free events.
func (e *Event) FeeCents() int64 {
	if !e.IsPaid {
		return 0
	}
	return e.EventFeeCents
}

// HasCapacityLimit reports whether MaxAttendees bounds registrations.
func (e *Event) HasCapacityLimit() bool {
	return e.MaxAttendees > 0
}
