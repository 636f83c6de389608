package grading

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type Metric struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description null.String `json:"description" db:"description"`
	Priority    int         `json:"priority" db:"priority"`
	Active      bool        `json:"active" db:"active"`
}

// Item is the score given for one metric.
type Item struct {
	MetricID string  `json:"metric_id" validate:"required,uuid"`
	Score    float64 `json:"score" validate:"min=0,max=10"`
	Priority int     `json:"priority" validate:"min=0"`
}

// Items is stored as a jsonb column.
type Items []Item

func (it Items) Value() (driver.Value, error) {
	if it == nil {
		return "[]", nil
	}
	b, err := json.Marshal(it)
	return string(b), err
}

func (it *Items) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*it = nil
		return nil
	case []byte:
		return json.Unmarshal(v, it)
	case string:
		return json.Unmarshal([]byte(v), it)
	}
	return errors.Errorf("grading: cannot scan %T into Items", src)
}

// Grade is the evaluation of one player at one event. Overall is provisional
// until Confirmed, i.e. until the server has returned its own value.
type Grade struct {
	ID        string      `json:"id" db:"id"`
	EventID   string      `json:"event_id" db:"event_id"`
	PlayerID  string      `json:"player_id" db:"player_id"`
	Items     Items       `json:"items" db:"items"`
	Overall   float64     `json:"overall" db:"overall"`
	Confirmed bool        `json:"confirmed" db:"-"`
	GradedBy  null.String `json:"graded_by" db:"graded_by"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

type SaveGrades struct {
	EventID  string `json:"event_id" validate:"required,uuid"`
	PlayerID string `json:"player_id" validate:"required,uuid"`
	Items    []Item `json:"items" validate:"required,min=1,dive"`
}

func (sg *SaveGrades) Validate(validate *validator.Validate) error {
	return validate.Struct(sg)
}

// Overall is the simple average of the scores, rounded to two decimals.
// Priority is display metadata and does not weigh the average.
func Overall(items []Item) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Score
	}
	return math.Round(sum/float64(len(items))*100) / 100
}

// Provisional builds the unconfirmed grade shown before the server answers.
func Provisional(eventID, playerID string, items []Item) Grade {
	return Grade{
		EventID:  eventID,
		PlayerID: playerID,
		Items:    items,
		Overall:  Overall(items),
	}
}
