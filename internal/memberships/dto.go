package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

// MembershipDTO is the transport shape for a raw membership record.
type MembershipDTO struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"userId"`
	ClubID    uuid.UUID              `json:"clubId"`
	Status    enums.MembershipStatus `json:"status"`
	PaymentID *uuid.UUID             `json:"paymentId,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"`
	ExpiredAt *time.Time             `json:"expiredAt,omitempty"`
}

// MembershipWithClub adds the club name for member dashboards.
type MembershipWithClub struct {
	MembershipDTO
	ClubName     string             `json:"clubName"`
	ClubCategory enums.ClubCategory `json:"clubCategory"`
}

func NewMembershipDTO(m models.Membership) MembershipDTO {
	return MembershipDTO{
		ID:        m.ID,
		UserID:    m.UserID,
		ClubID:    m.ClubID,
		Status:    m.Status,
		PaymentID: copyUUIDPointer(m.PaymentID),
		CreatedAt: m.CreatedAt,
		ExpiresAt: copyTimePointer(m.ExpiresAt),
		ExpiredAt: copyTimePointer(m.ExpiredAt),
	}
}

func NewMembershipDTOs(rows []models.Membership) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewMembershipDTO(row))
	}
	return out
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}

func copyTimePointer(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
