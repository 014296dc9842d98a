package memberships

import (
	"github.com/clubsphere/clubsphere-backend/pkg/db/models"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
)

type membershipWithClubRow struct {
	models.Membership
	ClubName     string             `gorm:"column:club_name"`
	ClubCategory enums.ClubCategory `gorm:"column:club_category"`
}

func membershipWithClubFromRow(row membershipWithClubRow) MembershipWithClub {
	return MembershipWithClub{
		MembershipDTO: NewMembershipDTO(row.Membership),
		ClubName:      row.ClubName,
		ClubCategory:  row.ClubCategory,
	}
}

func membershipRowsToDTO(rows []membershipWithClubRow) []MembershipWithClub {
	out := make([]MembershipWithClub, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipWithClubFromRow(row))
	}
	return out
}
