package model

import "time"

const (
	RoleUser      = "user"
	RoleInspector = "inspector"
	RoleEngineer  = "engineer"
)

// Roles lists every role a profile may hold, in onboarding display order
var Roles = []string{RoleUser, RoleInspector, RoleEngineer}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DashboardPath returns the page a role lands on
func DashboardPath(role string) string {
	return "/dashboard/" + role
}

// UserProfile is the persisted role record of an identity.
// Role is empty until onboarding has been completed.
type UserProfile struct {
	ID        string    `json:"id"` // Same as the identity provider's user id
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetRoleRequest is the onboarding role selection
type SetRoleRequest struct {
	Role string `json:"role" form:"role" binding:"required,oneof=user inspector engineer"`
}
