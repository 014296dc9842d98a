package payloads

import (
	"time"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/google/uuid"
)

// ClubCreatedEvent is emitted when a manager submits a club for review.
type ClubCreatedEvent struct {
	ClubID    uuid.UUID          `json:"clubId"`
	ManagerID uuid.UUID          `json:"managerId"`
	Name      string             `json:"name"`
	Category  enums.ClubCategory `json:"category"`
	Status    enums.ClubStatus   `json:"status"`
}

// ClubStatusChangedEvent records an admin moderation decision.
type ClubStatusChangedEvent struct {
	ClubID    uuid.UUID        `json:"clubId"`
	ManagerID uuid.UUID        `json:"managerId"`
	From      enums.ClubStatus `json:"from"`
	To        enums.ClubStatus `json:"to"`
	ChangedBy uuid.UUID        `json:"changedBy"`
}

// MembershipCreatedEvent is emitted for both free joins and paid confirmations.
type MembershipCreatedEvent struct {
	MembershipID uuid.UUID  `json:"membershipId"`
	UserID       uuid.UUID  `json:"userId"`
	ClubID       uuid.UUID  `json:"clubId"`
	PaymentID    *uuid.UUID `json:"paymentId,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// MembershipExpiredEvent covers manual expiry and the scheduled sweep.
type MembershipExpiredEvent struct {
	MembershipID uuid.UUID `json:"membershipId"`
	UserID       uuid.UUID `json:"userId"`
	ClubID       uuid.UUID `json:"clubId"`
	ExpiredAt    time.Time `json:"expiredAt"`
	Scheduled    bool      `json:"scheduled"`
}

type RegistrationCreatedEvent struct {
	RegistrationID uuid.UUID  `json:"registrationId"`
	UserID         uuid.UUID  `json:"userId"`
	EventID        uuid.UUID  `json:"eventId"`
	ClubID         uuid.UUID  `json:"clubId"`
	PaymentID      *uuid.UUID `json:"paymentId,omitempty"`
}

type RegistrationCancelledEvent struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	UserID         uuid.UUID `json:"userId"`
	EventID        uuid.UUID `json:"eventId"`
	ClubID         uuid.UUID `json:"clubId"`
	CancelledAt    time.Time `json:"cancelledAt"`
	CancelledBy    uuid.UUID `json:"cancelledBy"`
}

// PaymentEvent is shared by every payment lifecycle event.
type PaymentEvent struct {
	PaymentID        uuid.UUID           `json:"paymentId"`
	UserID           uuid.UUID           `json:"userId"`
	Kind             enums.PaymentKind   `json:"kind"`
	ClubID           uuid.UUID           `json:"clubId"`
	EventID          *uuid.UUID          `json:"eventId,omitempty"`
	AmountCents      int64               `json:"amountCents"`
	Currency         string              `json:"currency"`
	ExternalRef      string              `json:"externalRef"`
	Status           enums.PaymentStatus `json:"status"`
	FlaggedForRefund bool                `json:"flaggedForRefund,omitempty"`
	Reason           string              `json:"reason,omitempty"`
}
