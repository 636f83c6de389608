package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// ConsumesCredit reports whether a player marked s uses up one class credit.
func (s Status) ConsumesCredit() bool {
	return s == StatusPresent || s == StatusLate
}

// CreditDelta is the net change in used credits when a record moves from one
// status to another; from is "" for a new record. Re-saving a status is free.
func CreditDelta(from, to Status) int {
	var before, after int
	if from.ConsumesCredit() {
		before = 1
	}
	if to.ConsumesCredit() {
		after = 1
	}
	return after - before
}

type Record struct {
	ID        string      `json:"id" db:"id"`
	EventID   string      `json:"event_id" db:"event_id"`
	PlayerID  string      `json:"player_id" db:"player_id"`
	Status    Status      `json:"status" db:"status"`
	Notes     null.String `json:"notes" db:"notes"`
	MarkedBy  null.String `json:"marked_by" db:"marked_by"`
	MarkedAt  time.Time   `json:"marked_at" db:"marked_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// RecordInput is one line of an attendance batch.
type RecordInput struct {
	EventID  string `json:"event_id" validate:"required,uuid"`
	TeamID   string `json:"team_id,omitempty" validate:"omitempty,uuid"`
	PlayerID string `json:"player_id" validate:"required,uuid"`
	Status   Status `json:"status" validate:"required,attstatus"`
	Notes    string `json:"notes,omitempty" validate:"max=500"`
}

// Batch is the request body for saving attendance.
type Batch struct {
	Records []RecordInput `json:"records" validate:"required,min=1,max=200,dive"`
}

// CreditChange reports how a saved record moved a player's used credits.
type CreditChange struct {
	PlayerID     string      `json:"player_id"`
	UserID       null.String `json:"user_id"`
	MembershipID null.String `json:"membership_id"`
	Delta        int         `json:"delta"`
}

type BatchResult struct {
	Saved   int            `json:"saved"`
	Credits []CreditChange `json:"credit_changes"`
}

// ReportRow is one line of the attendance export.
type ReportRow struct {
	EventDate  core.Date `db:"event_date"`
	EventTitle string    `db:"event_title"`
	PlayerName string    `db:"player_name"`
	Status     Status    `db:"status"`
	Notes      string    `db:"notes"`
}
