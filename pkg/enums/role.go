package enums

// Role is the caller role asserted by the identity provider.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var roles = []Role{RoleMember, RoleManager, RoleAdmin}

func (r Role) IsValid() bool { return oneOf(r, roles) }

// CanModerate reports whether the role may act on clubs it does not manage.
func (r Role) CanModerate() bool { return r == RoleAdmin }

func ParseRole(value string) (Role, error) {
	return parse("role", value, roles)
}
