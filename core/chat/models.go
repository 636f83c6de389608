package chat

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type MessageStatus string

const (
	StatusSent     MessageStatus = "sent"
	StatusEdited   MessageStatus = "edited"
	StatusRecalled MessageStatus = "recalled"
)

const (
	EditWindow   = 15 * time.Minute
	RecallWindow = 2 * time.Minute
)

type Chat struct {
	ID           string      `json:"id" db:"id"`
	Title        null.String `json:"title" db:"title"`
	TeamID       null.String `json:"team_id" db:"team_id"`
	CreatedBy    string      `json:"created_by" db:"created_by"`
	Archived     bool        `json:"archived" db:"archived"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	Participants []string    `json:"participants" db:"-"`
}

type Message struct {
	ID         string        `json:"id" db:"id"`
	ChatID     string        `json:"chat_id" db:"chat_id"`
	SenderID   string        `json:"sender_id" db:"sender_id"`
	Content    string        `json:"content" db:"content"`
	Status     MessageStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	EditedAt   null.Time     `json:"edited_at" db:"edited_at"`
	RecalledAt null.Time     `json:"recalled_at" db:"recalled_at"`
}

// Editable reports whether by may still edit m at now.
func (m Message) Editable(by string, now time.Time) bool {
	return m.SenderID == by && m.Status != StatusRecalled && now.Sub(m.CreatedAt) <= EditWindow
}

// Recallable reports whether by may still recall m at now.
func (m Message) Recallable(by string, now time.Time) bool {
	return m.SenderID == by && m.Status != StatusRecalled && now.Sub(m.CreatedAt) <= RecallWindow
}

type NewChat struct {
	Title        string   `json:"title" validate:"max=120"`
	TeamID       string   `json:"team_id" validate:"omitempty,uuid"`
	Participants []string `json:"participants" validate:"required,min=1,max=100,dive,uuid"`
}

func (nc *NewChat) Validate(validate *validator.Validate) error {
	return validate.Struct(nc)
}

type MessageBody struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func (mb *MessageBody) Validate(validate *validator.Validate) error {
	return validate.Struct(mb)
}

type MessageFilter struct {
	Before time.Time
	Limit  int
}
