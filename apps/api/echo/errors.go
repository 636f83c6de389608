package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/telemetry"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountPending  = echo.NewHTTPError(http.StatusForbidden, "account pending approval")
	errAccountRejected = echo.NewHTTPError(http.StatusForbidden, "account rejected")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := resolveError(err, translator)

		switch {
		case code == http.StatusServiceUnavailable:
			logger.Warn("backend unavailable", errors.Wrap(err, ctx.Path()))
		case code >= http.StatusInternalServerError:
			claims, _ := getContextClaims(ctx)
			logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Path()), map[string]string{
				"id":    claims.Subject,
				"email": claims.Email,
			})

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// resolveError maps err to a status code and a message: a string or a map of field errors.
func resolveError(err error, translator ut.Translator) (int, interface{}) {
	// gateway errors carry the backend's classification; check them before unwrapping
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case gateway.KindPermission:
			return http.StatusForbidden, gerr.Detail
		case gateway.KindNotFound:
			return http.StatusNotFound, gerr.Detail
		case gateway.KindValidation:
			return http.StatusBadRequest, gerr.Detail
		case gateway.KindNetwork:
			return http.StatusServiceUnavailable, "backend unavailable, please retry"
		default:
			return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
		}
	}

	cause := errors.Cause(err)
	switch cause {
	case core.ErrNotFound:
		return http.StatusNotFound, "not found"
	case core.ErrForbidden:
		return http.StatusForbidden, "permission denied"
	case telemetry.ErrThrottled:
		return http.StatusTooManyRequests, cause.Error()
	case context.Canceled:
		return http.StatusServiceUnavailable, "request canceled"
	}

	switch origErr := cause.(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	default: // any other error is a server error
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
