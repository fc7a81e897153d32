package enums

import "fmt"

// UserRole gates what an actor may do: admins resolve requests and edit
// completed stages directly, everyone else goes through change requests.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleOperator UserRole = "operator"
	UserRoleEncoder  UserRole = "encoder"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleOperator,
	UserRoleEncoder,
}

// IsValid reports whether the value matches the canonical user role enum.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries administrator privileges.
func (u UserRole) IsAdmin() bool {
	return u == UserRoleAdmin
}

// ParseUserRole converts the raw string to UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
