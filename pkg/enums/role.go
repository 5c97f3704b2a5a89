package enums

// Role is the caller role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsStaff reports whether the role may operate on orders it does not own.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSystem
}

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}
