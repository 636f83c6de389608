package membership

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

type AllocationType string

const (
	AllocClassCount AllocationType = "class_count"
	AllocUnlimited  AllocationType = "unlimited"
	AllocDateRange  AllocationType = "date_range"
)

type Type struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	AllocationType AllocationType `json:"allocation_type" db:"allocation_type"`
	ClassCount     null.Int       `json:"class_count" db:"class_count"`
	DurationDays   null.Int       `json:"duration_days" db:"duration_days"`
	Price          null.Float64   `json:"price" db:"price"`
	IsActive       bool           `json:"is_active" db:"is_active"`
}

// Membership is a credit allocation held by a user.
type Membership struct {
	ID               string         `json:"id" db:"id"`
	UserID           string         `json:"user_id" db:"user_id"`
	MembershipTypeID string         `json:"membership_type_id" db:"membership_type_id"`
	TypeName         string         `json:"type_name" db:"type_name"`
	AllocationType   AllocationType `json:"allocation_type" db:"allocation_type"`
	Allocated        null.Int       `json:"allocated" db:"allocated"`
	Used             int            `json:"used" db:"used"`
	StartDate        core.Date      `json:"start_date" db:"start_date"`
	EndDate          core.Date      `json:"end_date" db:"end_date"`
	IsActive         bool           `json:"is_active" db:"is_active"`
	AutoDeactivate   bool           `json:"auto_deactivate" db:"auto_deactivate"`
	Notes            null.String    `json:"notes" db:"notes"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Remaining is allocated minus used, never negative; nil means unlimited.
func (m Membership) Remaining() *int {
	if m.AllocationType == AllocUnlimited || !m.Allocated.Valid {
		return nil
	}
	r := m.Allocated.Int - m.Used
	if r < 0 {
		r = 0
	}
	return &r
}

// CoversDate reports whether day falls within the membership's validity window.
func (m Membership) CoversDate(day time.Time) bool {
	if m.StartDate.Valid() && day.Before(m.StartDate.Time) {
		return false
	}
	if m.EndDate.Valid() && day.After(m.EndDate.Time) {
		return false
	}
	return true
}

// membershipJSON adds the derived remaining count to the wire format.
type membershipJSON struct {
	Membership
	Remaining *int `json:"remaining"`
}

// View is a Membership as shown to clients.
func (m Membership) View() interface{} {
	return membershipJSON{Membership: m, Remaining: m.Remaining()}
}

type Summary struct {
	UserID         string       `json:"user_id"`
	HasActive      bool         `json:"has_active"`
	HasUnlimited   bool         `json:"has_unlimited"`
	TotalRemaining int          `json:"total_remaining"`
	Memberships    []Membership `json:"memberships"`
}

// recompute derives the totals from the memberships so they never disagree.
func (s *Summary) recompute() {
	s.HasActive, s.HasUnlimited, s.TotalRemaining = false, false, 0
	for _, m := range s.Memberships {
		if !m.IsActive {
			continue
		}
		s.HasActive = true
		if r := m.Remaining(); r == nil {
			s.HasUnlimited = true
		} else {
			s.TotalRemaining += *r
		}
	}
}

// AssignMembership contains information needed to give a user a membership.
type AssignMembership struct {
	UserID             string `json:"user_id" validate:"required,uuid"`
	MembershipTypeID   string `json:"membership_type_id" validate:"required,uuid"`
	StartDate          string `json:"start_date" validate:"required,isodate"`
	EndDate            string `json:"end_date" validate:"omitempty,isodate"`
	OverrideClassCount *int   `json:"override_class_count" validate:"omitempty,min=1"`
	AutoDeactivate     *bool  `json:"auto_deactivate"`
	Notes              string `json:"notes" validate:"max=500"`
}

func (am *AssignMembership) Validate(validate *validator.Validate) error {
	am.Notes = core.CleanString(am.Notes)
	am.StartDate = core.CleanString(am.StartDate)
	am.EndDate = core.CleanString(am.EndDate)
	if err := validate.Struct(am); err != nil {
		return err
	}
	if am.EndDate != "" && am.EndDate < am.StartDate {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date cannot be before start_date"})
	}
	return nil
}

// LowCredit is a membership the maintenance sweep found close to exhaustion.
type LowCredit struct {
	MembershipID string `json:"membership_id"`
	UserID       string `json:"user_id"`
	FullName     string `json:"full_name"`
	TypeName     string `json:"type_name"`
	Remaining    int    `json:"remaining"`
}

type SweepResult struct {
	Deactivated int         `json:"deactivated"`
	LowCredit   []LowCredit `json:"low_credit"`
}
