package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

type Role string

// Roles
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleCoach      Role = "coach"
	RoleStaff      Role = "staff"
	RolePlayer     Role = "player"
	RoleParent     Role = "parent"
)

var (
	AdminRoles = []Role{RoleSuperAdmin, RoleAdmin}
	StaffRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleCoach, RoleStaff}
	AllRoles   = []Role{RoleSuperAdmin, RoleAdmin, RoleCoach, RoleStaff, RolePlayer, RoleParent}

	rolePriorities = map[Role]int{
		RoleSuperAdmin: 60,
		RoleAdmin:      50,
		RoleCoach:      40,
		RoleStaff:      30,
		RolePlayer:     20,
		RoleParent:     10,
	}

	Roles = []RoleInfo{
		{Name: "Parent", Value: RoleParent},
		{Name: "Player", Value: RolePlayer},
		{Name: "Staff", Value: RoleStaff},
		{Name: "Coach", Value: RoleCoach},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

func RolePriority(role Role) int {
	return rolePriorities[role]
}

func (r Role) Known() bool {
	_, ok := rolePriorities[r]
	return ok
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// RoleAssignment is one (user, role) row; inactive assignments grant nothing.
type RoleAssignment struct {
	Role     Role `json:"role"`
	IsActive bool `json:"is_active"`
}

// AuthData is what the gate needs to know about a user.
type AuthData struct {
	UserID         string           `json:"user_id"`
	ApprovalStatus ApprovalStatus   `json:"approval_status"`
	Roles          []RoleAssignment `json:"roles"`
}

// ActiveRoles lists the active roles, highest priority first.
func (a AuthData) ActiveRoles() []Role {
	roles := make([]Role, 0, len(a.Roles))
	for _, ra := range a.Roles {
		if ra.IsActive {
			roles = append(roles, ra.Role)
		}
	}
	for i := 1; i < len(roles); i++ {
		for j := i; j > 0 && RolePriority(roles[j]) > RolePriority(roles[j-1]); j-- {
			roles[j], roles[j-1] = roles[j-1], roles[j]
		}
	}
	return roles
}

func (a AuthData) HasActiveRole(roles ...Role) bool {
	for _, ra := range a.Roles {
		if !ra.IsActive {
			continue
		}
		for _, r := range roles {
			if ra.Role == r {
				return true
			}
		}
	}
	return false
}

// PrimaryRole is the highest priority active role, or "".
func (a AuthData) PrimaryRole() Role {
	if roles := a.ActiveRoles(); len(roles) > 0 {
		return roles[0]
	}
	return ""
}

type Profile struct {
	ID              string         `json:"id" db:"id"`
	Email           string         `json:"email" db:"email"`
	FullName        string         `json:"full_name" db:"full_name"`
	Phone           null.String    `json:"phone" db:"phone"`
	ApprovalStatus  ApprovalStatus `json:"approval_status" db:"approval_status"`
	RejectionReason null.String    `json:"rejection_reason" db:"rejection_reason"`
	ApprovedAt      null.Time      `json:"approved_at" db:"approved_at"`
	ApprovedBy      null.String    `json:"approved_by" db:"approved_by"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"` // UTC
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"` // UTC
	Roles           []Role         `json:"roles" db:"-"`
}

// UpdateProfile defines what a user may change on their own Profile.
type UpdateProfile struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	up.Phone = core.CleanString(up.Phone)
	return validate.Struct(up)
}

// Decision is an admin's verdict on a pending account.
type Decision struct {
	Decision ApprovalStatus `json:"decision" validate:"required,approval"`
	Reason   string         `json:"reason" validate:"max=500"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Reason = core.CleanString(d.Reason)
	return validate.Struct(d)
}

type QueryFilter struct {
	Search    string            `query:"search" json:"search"`
	Status    ApprovalStatus    `query:"status" json:"status" validate:"omitempty,oneof=pending approved rejected"`
	Role      Role              `query:"role" json:"role" validate:"omitempty,role"`
	Orderings []core.DBOrdering `query:"-" json:"-"`
}

func (f *QueryFilter) Validate(validate *validator.Validate) error {
	f.Search = core.CleanString(f.Search)
	return validate.Struct(f)
}
