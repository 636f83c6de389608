package health

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core"
)

// Checkin is the daily self report of a player; one per player and day.
type Checkin struct {
	ID          string       `json:"id" db:"id"`
	PlayerID    string       `json:"player_id" db:"player_id"`
	CheckinDate core.Date    `json:"checkin_date" db:"checkin_date"`
	Energy      int          `json:"energy_level" db:"energy_level"`
	Soreness    int          `json:"soreness_level" db:"soreness_level"`
	SleepHours  null.Float64 `json:"sleep_hours" db:"sleep_hours"`
	Mood        null.Int     `json:"mood" db:"mood"`
	Injury      bool         `json:"has_injury" db:"has_injury"`
	InjuryNotes null.String  `json:"injury_notes" db:"injury_notes"`
	Notes       null.String  `json:"notes" db:"notes"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

type SubmitCheckin struct {
	PlayerID    string   `json:"player_id" validate:"required,uuid"`
	Date        string   `json:"checkin_date" validate:"omitempty,isodate"`
	Energy      int      `json:"energy_level" validate:"required,min=1,max=10"`
	Soreness    int      `json:"soreness_level" validate:"required,min=1,max=10"`
	SleepHours  *float64 `json:"sleep_hours" validate:"omitempty,min=0,max=24"`
	Mood        *int     `json:"mood" validate:"omitempty,min=1,max=10"`
	Injury      bool     `json:"has_injury"`
	InjuryNotes string   `json:"injury_notes" validate:"max=1000"`
	Notes       string   `json:"notes" validate:"max=1000"`
}

func (sc *SubmitCheckin) Validate(validate *validator.Validate) error {
	return validate.Struct(sc)
}

// Thresholds decide when a check-in raises an alert.
type Thresholds struct {
	Soreness int // alert at or above
	Energy   int // alert at or below
}

var DefaultThresholds = Thresholds{Soreness: 8, Energy: 2}

// Reasons lists why c should alert the staff; empty means no alert.
func (t Thresholds) Reasons(c Checkin) []string {
	var reasons []string
	if c.Injury {
		reasons = append(reasons, "injury reported")
	}
	if c.Soreness >= t.Soreness {
		reasons = append(reasons, "high soreness")
	}
	if c.Energy <= t.Energy {
		reasons = append(reasons, "low energy")
	}
	return reasons
}

// Alert is the payload of the health alert email function.
type Alert struct {
	PlayerID   string   `json:"player_id"`
	PlayerName string   `json:"player_name"`
	Date       string   `json:"checkin_date"`
	Energy     int      `json:"energy_level"`
	Soreness   int      `json:"soreness_level"`
	Injury     bool     `json:"has_injury"`
	Notes      string   `json:"injury_notes,omitempty"`
	Reasons    []string `json:"reasons"`
}

// Dashboard is the staff overview returned by rpc_dashboard_health.
type Dashboard struct {
	Date            core.Date        `json:"date"`
	Submitted       int              `json:"submitted"`
	ExpectedPlayers int              `json:"expected_players"`
	AverageEnergy   null.Float64     `json:"average_energy"`
	AverageSoreness null.Float64     `json:"average_soreness"`
	ActiveInjuries  int              `json:"active_injuries"`
	FlaggedCheckins []FlaggedCheckin `json:"flagged"`
}

type FlaggedCheckin struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Energy     int    `json:"energy_level"`
	Soreness   int    `json:"soreness_level"`
	Injury     bool   `json:"has_injury"`
}
