package enums

// ClubStatus is the moderation state of a club. Only approved clubs accept
// members or publish events.
type ClubStatus string

const (
	ClubStatusPending  ClubStatus = "pending"
	ClubStatusApproved ClubStatus = "approved"
	ClubStatusRejected ClubStatus = "rejected"
)

var clubStatuses = []ClubStatus{ClubStatusPending, ClubStatusApproved, ClubStatusRejected}

func (s ClubStatus) IsValid() bool { return oneOf(s, clubStatuses) }

// CanTransitionTo allows pending->approved, pending->rejected and
// approved->rejected. Rejection is final.
func (s ClubStatus) CanTransitionTo(next ClubStatus) bool {
	switch s {
	case ClubStatusPending:
		return next == ClubStatusApproved || next == ClubStatusRejected
	case ClubStatusApproved:
		return next == ClubStatusRejected
	default:
		return false
	}
}

func ParseClubStatus(value string) (ClubStatus, error) {
	return parse("club status", value, clubStatuses)
}
