package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hoopdesk/hoopdesk/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// DateRange is the inclusive [from, to] day range of the `from` and `to` query params (YYYY-MM-DD).
type DateRange struct {
	From time.Time
	To   time.Time
}

// Bind reads the range, falling back to today+fromDays and today+toDays for missing bounds.
func (dr *DateRange) Bind(ctx echo.Context, fromDays, toDays int) error {
	today := core.Today()
	dr.From = today.AddDate(0, 0, fromDays)
	dr.To = today.AddDate(0, 0, toDays)

	var flds []core.FieldError
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"from", &dr.From}, {"to", &dr.To}} {
		s := strings.TrimSpace(ctx.QueryParam(p.name))
		if s == "" {
			continue
		}
		day, err := core.ParseDate(s)
		if err != nil {
			flds = append(flds, core.FieldError{Field: p.name, Error: p.name + " must be a date (YYYY-MM-DD)"})
			continue
		}
		*p.dest = day
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	if dr.To.Before(dr.From) {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to cannot be before from"})
	}
	return nil
}

// queryBool reads a boolean query param; anything unparsable is false.
func queryBool(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}
