package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"net"
	"syscall"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Kind classifies a failed remote call.
type Kind string

const (
	KindPermission Kind = "permission"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

// Error is the single error type returned by the gateway for remote failures.
// Detail carries the backend's message verbatim.
type Error struct {
	Kind   Kind
	Proc   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Proc + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Cause() error  { return e.Err }

// KindOf returns the kind of a gateway error, or "" when err is not one.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// IsRetryable reports whether a read can be tried again: only transport failures qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindNetwork
}

// Classify tags err once, at the boundary. Cancellation is passed through untouched.
func Classify(proc string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	return &Error{Kind: kindOf(err), Proc: proc, Detail: detailOf(err), Err: err}
}

func kindOf(err error) Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42501", "28000", "28P01": // insufficient_privilege, invalid_authorization_specification, invalid_password
			return KindPermission
		case "P0002", "42883": // no_data_found, undefined_function
			return KindNotFound
		case "P0001": // raise_exception
			return KindValidation
		case "40001", "40P01", "57P01", "57P02", "57P03": // serialization, deadlock, shutdown
			return KindNetwork
		}
		switch pqErr.Code.Class() {
		case "08", "53": // connection_exception, insufficient_resources
			return KindNetwork
		case "22", "23": // data_exception, integrity_constraint_violation
			return KindValidation
		}
		return KindUnknown
	}

	// timeouts and refused or reset connections are transient
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindNetwork
	}
	return KindUnknown
}

func detailOf(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return err.Error()
}
