package dashboard

import (
	"github.com/google/uuid"

	"github.com/clubsphere/clubsphere-backend/internal/clubs"
	"github.com/clubsphere/clubsphere-backend/internal/payments"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/clubsphere/clubsphere-backend/pkg/money"
)

type MemberOverview struct {
	ActiveMemberships  int64        `json:"activeMemberships"`
	UpcomingEvents     int64        `json:"upcomingEvents"`
	SuccessfulPayments int64        `json:"successfulPayments"`
	TotalPaid          money.Amount `json:"totalPaid"`
}

// ClubStats summarises one managed club.
type ClubStats struct {
	ClubID             uuid.UUID        `json:"clubId"`
	Name               string           `json:"name"`
	Status             enums.ClubStatus `json:"status"`
	ActiveMembers      int64            `json:"activeMembers"`
	ExpiredMembers     int64            `json:"expiredMembers"`
	Events             int64            `json:"events"`
	UpcomingEvents     int64            `json:"upcomingEvents"`
	SuccessfulPayments int64            `json:"successfulPayments"`
	Revenue            money.Amount     `json:"revenue"`
}

type ManagerOverview struct {
	Clubs  []ClubStats `json:"clubs"`
	Totals ClubStats   `json:"totals"`
}

type StatusCounts map[string]int64

type AdminOverview struct {
	Clubs            StatusCounts    `json:"clubs"`
	Users            int64           `json:"users"`
	Memberships      StatusCounts    `json:"memberships"`
	Events           int64           `json:"events"`
	Payments         StatusCounts    `json:"payments"`
	Revenue          money.Amount    `json:"revenue"`
	FlaggedForRefund int64           `json:"flaggedForRefund"`
	PendingApprovals []clubs.ClubDTO `json:"pendingApprovals"`
}

// PaymentPage is a cursor page of payments.
type PaymentPage struct {
	Items  []payments.PaymentDTO `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

func newStatusCounts[T ~string](statuses ...T) StatusCounts {
	out := make(StatusCounts, len(statuses))
	for _, s := range statuses {
		out[string(s)] = 0
	}
	return out
}
