package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/health"
	"github.com/hoopdesk/hoopdesk/core/user"
)

type HealthService interface {
	Submit(ctx context.Context, sc health.SubmitCheckin) (*health.Checkin, error)
	ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]health.Checkin, error)
	Dashboard(ctx context.Context) (health.Dashboard, error)
}

var _ HealthService = (*health.Service)(nil)

type healthApi struct {
	svc      HealthService
	players  playerLookup
	validate *validator.Validate
}

func registerHealthAPI(g *echo.Group, gate gate, svc HealthService, players playerLookup, validate *validator.Validate) {
	api := healthApi{svc: svc, players: players, validate: validate}

	hg := g.Group("/health")
	hg.POST("/checkins", api.submit, gate.require())
	hg.GET("/dashboard", api.dashboard, gate.require(user.StaffRoles...))

	g.GET("/players/:id/checkins", api.forPlayer, gate.require())
}

func (api *healthApi) submit(ctx echo.Context) error {
	var data health.SubmitCheckin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitCheckin")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := actForPlayer(ctx, api.players, data.PlayerID, user.StaffRoles...); err != nil {
		return err
	}
	c, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting check-in")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *healthApi) forPlayer(ctx echo.Context) error {
	if err := actForPlayer(ctx, api.players, ctx.Param("id"), user.StaffRoles...); err != nil {
		return err
	}
	var dr DateRange
	if err := dr.Bind(ctx, -30, 0); err != nil {
		return err
	}
	checkins, err := api.svc.ForPlayer(ctx.Request().Context(), ctx.Param("id"), dr.From, dr.To)
	if err != nil {
		return errors.Wrap(err, "listing check-ins")
	}
	if checkins == nil {
		checkins = []health.Checkin{}
	}
	return ctx.JSON(http.StatusOK, checkins)
}

func (api *healthApi) dashboard(ctx echo.Context) error {
	d, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "fetching health dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
