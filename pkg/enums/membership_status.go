package enums

// MembershipStatus is active until a manager, an admin or the expiry job
// moves it to expired. Expired is terminal.
type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusExpired MembershipStatus = "expired"
)

var membershipStatuses = []MembershipStatus{MembershipStatusActive, MembershipStatusExpired}

func (s MembershipStatus) IsValid() bool { return oneOf(s, membershipStatuses) }

func (s MembershipStatus) IsActive() bool { return s == MembershipStatusActive }

func ParseMembershipStatus(value string) (MembershipStatus, error) {
	return parse("membership status", value, membershipStatuses)
}
