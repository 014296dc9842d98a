package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// Payment anchors a gateway intent to the membership or registration it pays for.
// Once success or failed the row is immutable apart from FlaggedForRefund.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Kind             enums.PaymentKind   `gorm:"column:kind;type:payment_kind;not null"`
	ClubID           uuid.UUID           `gorm:"column:club_id;type:uuid;not null"`
	EventID          *uuid.UUID          `gorm:"column:event_id;type:uuid"`
	AmountCents      int64               `gorm:"column:amount_cents;not null"`
	Currency         string              `gorm:"column:currency;not null;default:'usd'"`
	ExternalRef      string              `gorm:"column:external_ref;not null;uniqueIndex"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	FlaggedForRefund bool                `gorm:"column:flagged_for_refund;not null;default:false"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	GatewaySnapshot  datatypes.JSON      `gorm:"column:gateway_snapshot;type:jsonb"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
