package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/user"
)

type MembershipService interface {
	Assign(ctx context.Context, am membership.AssignMembership) (membership.Membership, error)
	AssignForPlayer(ctx context.Context, playerID string, am membership.AssignMembership) (membership.Membership, error)
	Summary(ctx context.Context, userID string) (membership.Summary, error)
	InvalidateSummary(userID string)
	ForUser(ctx context.Context, userID string) ([]membership.Membership, error)
	Types(ctx context.Context) ([]membership.Type, error)
	Sweep(ctx context.Context, today time.Time) (membership.SweepResult, error)
}

var _ MembershipService = (*membership.Service)(nil)

type membershipApi struct {
	svc      MembershipService
	validate *validator.Validate
}

func registerMembershipAPI(g *echo.Group, gate gate, svc MembershipService, validate *validator.Validate) {
	api := membershipApi{svc: svc, validate: validate}

	g.GET("/membership-types", api.queryTypes, gate.require())

	mg := g.Group("/memberships")
	mg.POST("", api.assign, gate.require(user.AdminRoles...))
	mg.POST("/sweep", api.sweep, gate.require(user.AdminRoles...))

	g.POST("/players/:id/memberships", api.assignForPlayer, gate.require(user.AdminRoles...))
	g.GET("/users/:id/memberships", api.forUser, gate.require())
	g.GET("/users/:id/membership-summary", api.summary, gate.require())
}

func (api *membershipApi) queryTypes(ctx echo.Context) error {
	types, err := api.svc.Types(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying membership types")
	}
	if types == nil {
		types = []membership.Type{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (api *membershipApi) assign(ctx echo.Context) error {
	var data membership.AssignMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignMembership")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Assign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning membership")
	}
	return ctx.JSON(http.StatusCreated, m.View())
}

// assignForPlayer keeps the player keyed entry point; the user account is resolved server side.
func (api *membershipApi) assignForPlayer(ctx echo.Context) error {
	var data membership.AssignMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignMembership")
	}
	data.Notes = core.CleanString(data.Notes)
	if err := api.validate.StructExcept(data, "UserID"); err != nil {
		return err
	}

	m, err := api.svc.AssignForPlayer(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning membership to player")
	}
	return ctx.JSON(http.StatusCreated, m.View())
}

func (api *membershipApi) forUser(ctx echo.Context) error {
	userID := ctx.Param("id")
	if !isSelfOrAny(ctx, userID, user.StaffRoles...) {
		return errHttpForbidden
	}
	ms, err := api.svc.ForUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing memberships")
	}
	views := make([]interface{}, 0, len(ms))
	for _, m := range ms {
		views = append(views, m.View())
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *membershipApi) summary(ctx echo.Context) error {
	userID := ctx.Param("id")
	if !isSelfOrAny(ctx, userID, user.StaffRoles...) {
		return errHttpForbidden
	}
	s, err := api.svc.Summary(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "fetching membership summary")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *membershipApi) sweep(ctx echo.Context) error {
	today := core.Today()
	if s := ctx.QueryParam("date"); s != "" {
		day, err := core.ParseDate(s)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be a date (YYYY-MM-DD)"})
		}
		today = day
	}
	res, err := api.svc.Sweep(ctx.Request().Context(), today)
	if err != nil {
		return errors.Wrap(err, "sweeping memberships")
	}
	return ctx.JSON(http.StatusOK, res)
}
