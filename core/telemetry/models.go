package telemetry

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

// Event is one product analytics event.
type Event struct {
	ID         string      `json:"id" db:"id"`
	UserID     null.String `json:"user_id" db:"user_id"`
	Name       string      `json:"event_name" db:"event_name"`
	Properties null.JSON   `json:"properties" db:"properties"`
	Path       null.String `json:"page_path" db:"page_path"`
	SessionID  null.String `json:"session_id" db:"session_id"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

type TrackEvent struct {
	Name       string    `json:"event_name" validate:"required,max=100"`
	Properties null.JSON `json:"properties"`
	Path       string    `json:"page_path" validate:"max=500"`
	SessionID  string    `json:"session_id" validate:"max=100"`
}

func (te *TrackEvent) Validate(validate *validator.Validate) error {
	return validate.Struct(te)
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Kind string

const (
	KindError       Kind = "error"
	KindPerformance Kind = "performance"
)

// Report is an error or performance sample sent by a client.
type Report struct {
	Kind       Kind      `json:"kind" validate:"required,oneof=error performance"`
	Severity   Severity  `json:"severity" validate:"required,oneof=low medium high critical"`
	Message    string    `json:"message" validate:"required,max=2000"`
	Stack      string    `json:"stack,omitempty" validate:"max=20000"`
	Path       string    `json:"page_path,omitempty" validate:"max=500"`
	UserAgent  string    `json:"user_agent,omitempty" validate:"max=500"`
	Metric     string    `json:"metric,omitempty" validate:"max=100"`
	Value      float64   `json:"value,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Release    string    `json:"release,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Report) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}
