package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/money"
)

// CreateIntentInput is a request to pay for a membership or an event seat.
// AmountCents is optional; when set it must match the server-side fee.
type CreateIntentInput struct {
	Kind        enums.PaymentKind
	TargetID    uuid.UUID
	AmountCents int64
}

// IntentResult is returned by CreateIntent and carried in PAYMENT_REQUIRED details.
type IntentResult struct {
	IntentID     string    `json:"intentId"`
	ClientSecret string    `json:"clientSecret"`
	PaymentID    uuid.UUID `json:"paymentId"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}

// ConfirmResult holds the settled payment and the record it paid for.
type ConfirmResult struct {
	Payment      *models.Payment
	Membership   *models.Membership
	Registration *models.EventRegistration
}

type PaymentDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"userId"`
	Kind             enums.PaymentKind   `json:"type"`
	ClubID           uuid.UUID           `json:"clubId"`
	EventID          *uuid.UUID          `json:"eventId,omitempty"`
	AmountCents      int64               `json:"amountCents"`
	Amount           string              `json:"amount"`
	Currency         string              `json:"currency"`
	ExternalRef      string              `json:"externalRef"`
	Status           enums.PaymentStatus `json:"status"`
	FlaggedForRefund bool                `json:"flaggedForRefund"`
	FailureReason    *string             `json:"failureReason,omitempty"`
	ConfirmedAt      *time.Time          `json:"confirmedAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

func NewPaymentDTO(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:               p.ID,
		UserID:           p.UserID,
		Kind:             p.Kind,
		ClubID:           p.ClubID,
		EventID:          p.EventID,
		AmountCents:      p.AmountCents,
		Amount:           money.Format(p.AmountCents),
		Currency:         p.Currency,
		ExternalRef:      p.ExternalRef,
		Status:           p.Status,
		FlaggedForRefund: p.FlaggedForRefund,
		FailureReason:    p.FailureReason,
		ConfirmedAt:      p.ConfirmedAt,
		CreatedAt:        p.CreatedAt,
	}
}

func NewPaymentDTOs(rows []models.Payment) []PaymentDTO {
	out := make([]PaymentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewPaymentDTO(row))
	}
	return out
}
