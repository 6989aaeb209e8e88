package enums

// Role is the caller role asserted by the identity provider's access token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

var validRoles = []Role{
	RoleAdmin,
	RoleCustomer,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return oneOf(r, validRoles)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse("role", value, validRoles)
}
