package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/money"
)

type CreateEventInput struct {
	Title         string
	Description   string
	Location      string
	EventDate     time.Time
	IsPaid        bool
	EventFeeCents int64
	MaxAttendees  int
}

// UpdateEventInput carries a partial edit; nil fields keep their value.
type UpdateEventInput struct {
	Title         *string
	Description   *string
	Location      *string
	EventDate     *time.Time
	IsPaid        *bool
	EventFeeCents *int64
	MaxAttendees  *int
}

func (in UpdateEventInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.Location == nil && in.EventDate == nil &&
		in.IsPaid == nil && in.EventFeeCents == nil && in.MaxAttendees == nil
}

type EventDTO struct {
	ID            uuid.UUID `json:"id"`
	ClubID        uuid.UUID `json:"clubId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	EventDate     time.Time `json:"eventDate"`
	IsPaid        bool      `json:"isPaid"`
	EventFeeCents int64     `json:"eventFeeCents"`
	EventFee      string    `json:"eventFee"`
	MaxAttendees  int       `json:"maxAttendees"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewEventDTO(e models.Event) EventDTO {
	return EventDTO{
		ID:            e.ID,
		ClubID:        e.ClubID,
		Title:         e.Title,
		Description:   e.Description,
		Location:      e.Location,
		EventDate:     e.EventDate,
		IsPaid:        e.IsPaid,
		EventFeeCents: e.EventFeeCents,
		EventFee:      money.Format(e.FeeCents()),
		MaxAttendees:  e.MaxAttendees,
		CreatedAt:     e.CreatedAt,
	}
}

func NewEventDTOs(rows []models.Event) []EventDTO {
	out := make([]EventDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewEventDTO(row))
	}
	return out
}
