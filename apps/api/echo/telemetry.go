package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/telemetry"
)

type TelemetryService interface {
	Track(ctx context.Context, userID string, te telemetry.TrackEvent) (*telemetry.Event, error)
	Report(ctx context.Context, r telemetry.Report) error
}

var _ TelemetryService = (*telemetry.Service)(nil)

type telemetryApi struct {
	svc      TelemetryService
	validate *validator.Validate
}

// registerTelemetryAPI takes the public group too: errors are reported from signed out pages as well.
func registerTelemetryAPI(public, authed *echo.Group, gate gate, svc TelemetryService, validate *validator.Validate) {
	api := telemetryApi{svc: svc, validate: validate}

	public.POST("/telemetry/reports", api.report)
	authed.POST("/telemetry/events", api.track, gate.require())
}

func (api *telemetryApi) track(ctx echo.Context) error {
	var data telemetry.TrackEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TrackEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.Track(ctx.Request().Context(), contextUserID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "tracking event")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *telemetryApi) report(ctx echo.Context) error {
	var data telemetry.Report
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Report")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.UserAgent == "" {
		data.UserAgent = ctx.Request().UserAgent()
	}
	if err := api.svc.Report(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "reporting")
	}
	return ctx.NoContent(http.StatusAccepted)
}
