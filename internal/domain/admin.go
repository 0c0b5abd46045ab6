package domain

import "time"

// RoleSuperAdmin is the role tag of console operators.
const RoleSuperAdmin = "super-admin"

// Permissions are advisory capability flags shown on an operator's profile.
// Nothing enforces them yet.
type Permissions struct {
	ManageSchools bool `json:"manageSchools"`
	ManageBilling bool `json:"manageBilling"`
	SystemControl bool `json:"systemControl"`
	ManageAdmins  bool `json:"manageAdmins"`
}

// DefaultPermissions is what a newly added operator gets unless told otherwise.
var DefaultPermissions = Permissions{ManageSchools: true}

// SuperAdmin is an operator of this console.
type SuperAdmin struct {
	UID         string
	Name        string
	Email       string
	Role        string
	Permissions Permissions
	Status      string
	CreatedAt   time.Time
}

// NewSuperAdmin creates an active operator record.
func NewSuperAdmin(uid, name, email string, perms Permissions, now time.Time) SuperAdmin {
	return SuperAdmin{
		UID:         uid,
		Name:        name,
		Email:       NormalizeEmail(email),
		Role:        RoleSuperAdmin,
		Permissions: perms,
		Status:      "active",
		CreatedAt:   now.UTC(),
	}
}
