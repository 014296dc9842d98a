package registrations

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

type RegistrationDTO struct {
	ID           uuid.UUID                `json:"id"`
	UserID       uuid.UUID                `json:"userId"`
	EventID      uuid.UUID                `json:"eventId"`
	ClubID       uuid.UUID                `json:"clubId"`
	Status       enums.RegistrationStatus `json:"status"`
	PaymentID    *uuid.UUID               `json:"paymentId,omitempty"`
	RegisteredAt time.Time                `json:"registeredAt"`
	CancelledAt  *time.Time               `json:"cancelledAt,omitempty"`
}

// RegistrationWithEvent backs the member "my events" list.
type RegistrationWithEvent struct {
	RegistrationDTO
	EventTitle string    `json:"eventTitle"`
	EventDate  time.Time `json:"eventDate"`
	ClubName   string    `json:"clubName"`
}

func NewRegistrationDTO(r models.EventRegistration) RegistrationDTO {
	return RegistrationDTO{
		ID:           r.ID,
		UserID:       r.UserID,
		EventID:      r.EventID,
		ClubID:       r.ClubID,
		Status:       r.Status,
		PaymentID:    r.PaymentID,
		RegisteredAt: r.RegisteredAt,
		CancelledAt:  r.CancelledAt,
	}
}

func NewRegistrationDTOs(rows []models.EventRegistration) []RegistrationDTO {
	out := make([]RegistrationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewRegistrationDTO(row))
	}
	return out
}
