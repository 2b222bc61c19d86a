package schema

import "slices"

// User is the public view of an account. Credentials never leave the auth store.
type User struct {
	ID          UserID       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Avatar      string       `json:"avatar,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// Can reports whether the user holds the permission.
func (u User) Can(p Permission) bool {
	return slices.Contains(u.Permissions, p)
}

// DefaultPermissions returns the permissions granted to a role.
func DefaultPermissions(role Role) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionManage}
	case RoleManager:
		return []Permission{PermissionRead, PermissionWrite}
	default:
		return []Permission{PermissionRead}
	}
}

// Account pairs a user with the token issued for it.
type Account struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
