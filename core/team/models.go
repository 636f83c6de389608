package team

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type Team struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	AgeGroup  null.String `json:"age_group" db:"age_group"`
	Season    null.String `json:"season" db:"season"`
	CoachID   null.String `json:"coach_id" db:"coach_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type Player struct {
	ID           string      `json:"id" db:"id"`
	TeamID       null.String `json:"team_id" db:"team_id"`
	UserID       null.String `json:"user_id" db:"user_id"`
	FullName     string      `json:"full_name" db:"full_name"`
	JerseyNumber null.Int    `json:"jersey_number" db:"jersey_number"`
	Position     null.String `json:"position" db:"position"`
	Active       bool        `json:"active" db:"active"`
}

type EventType string

const (
	EventPractice EventType = "practice"
	EventGame     EventType = "game"
	EventMeeting  EventType = "meeting"
	EventOther    EventType = "other"
)

// Schedule is a team event; attendance and grades hang off it.
type Schedule struct {
	ID        string      `json:"id" db:"id"`
	TeamID    string      `json:"team_id" db:"team_id"`
	Title     string      `json:"title" db:"title"`
	EventType EventType   `json:"event_type" db:"event_type"`
	StartsAt  time.Time   `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time   `json:"ends_at" db:"ends_at"`
	Location  null.String `json:"location" db:"location"`
	Notes     null.String `json:"notes" db:"notes"`
	CreatedBy string      `json:"created_by" db:"created_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type NewTeam struct {
	Name     string `json:"name" validate:"required,max=80"`
	AgeGroup string `json:"age_group" validate:"max=20"`
	Season   string `json:"season" validate:"max=20"`
	CoachID  string `json:"coach_id" validate:"omitempty,uuid"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	return validate.Struct(nt)
}

type NewSchedule struct {
	TeamID    string    `json:"team_id" validate:"required,uuid"`
	Title     string    `json:"title" validate:"required,max=120"`
	EventType EventType `json:"event_type" validate:"required,oneof=practice game meeting other"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Location  string    `json:"location" validate:"max=200"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}
