// Package pgrepos implements the domain repositories as direct table reads and
// writes with sqlx. Writes that move credits or change approval go through
// the procedure gateway instead.
package pgrepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
)

// trapNoRowsErr maps psql "no rows" err to notFound; any other error is tagged with a gateway kind.
func trapNoRowsErr(err error, notFound error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return gateway.Classify(what, err)
}

func classify(what string, err error) error {
	return gateway.Classify(what, err)
}

func notFound(what string) error {
	return errors.WithMessage(core.ErrNotFound, what)
}

// validID reports whether id can be compared with a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// whereBuilder collects AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// add appends cond, where every "?" is replaced with the next placeholder.
func (w *whereBuilder) add(cond string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func expectOne(res sql.Result, notFound error, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(what, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
