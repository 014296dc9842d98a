package clubs

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/money"
)

// SortOrder selects the listing order for the public catalogue.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortOldest     SortOrder = "oldest"
	SortHighestFee SortOrder = "highestFee"
	SortLowestFee  SortOrder = "lowestFee"
)

// ParseSortOrder defaults an empty value to newest.
func ParseSortOrder(raw string) (SortOrder, bool) {
	switch SortOrder(raw) {
	case "":
		return SortNewest, true
	case SortNewest, SortOldest, SortHighestFee, SortLowestFee:
		return SortOrder(raw), true
	default:
		return "", false
	}
}

func (s SortOrder) orderClause() string {
	switch s {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortHighestFee:
		return "membership_fee_cents DESC, created_at DESC, id DESC"
	case SortLowestFee:
		return "membership_fee_cents ASC, created_at ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// CreateClubInput is what a manager submits for review.
type CreateClubInput struct {
	Name               string
	Description        string
	Category           enums.ClubCategory
	Location           string
	BannerImage        *string
	MembershipFeeCents int64
}

// ListParams configures the public catalogue query.
type ListParams struct {
	Search   string
	Category string
	Sort     string
	Limit    int
	Cursor   string
}

type ListResult struct {
	Items  []ClubDTO `json:"items"`
	Cursor string    `json:"cursor"`
}

// ClubDTO is the transport shape for a club.
type ClubDTO struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Category           enums.ClubCategory `json:"category"`
	Location           string             `json:"location"`
	BannerImage        *string            `json:"bannerImage,omitempty"`
	ManagerID          uuid.UUID          `json:"managerId"`
	MembershipFeeCents int64              `json:"membershipFeeCents"`
	MembershipFee      string             `json:"membershipFee"`
	Status             enums.ClubStatus   `json:"status"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func NewClubDTO(c models.Club) ClubDTO {
	return ClubDTO{
		ID:                 c.ID,
		Name:               c.Name,
		Description:        c.Description,
		Category:           c.Category,
		Location:           c.Location,
		BannerImage:        c.BannerImage,
		ManagerID:          c.ManagerID,
		MembershipFeeCents: c.MembershipFeeCents,
		MembershipFee:      money.Format(c.MembershipFeeCents),
		Status:             c.Status,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func NewClubDTOs(rows []models.Club) []ClubDTO {
	out := make([]ClubDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewClubDTO(row))
	}
	return out
}
