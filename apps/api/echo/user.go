package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/user"
)

type UserService interface {
	authorizer
	Approve(ctx context.Context, targetID string, d user.Decision) (user.Profile, error)
	GetByID(ctx context.Context, id string) (user.Profile, error)
	Filter(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error)
	Update(ctx context.Context, id string, up user.UpdateProfile) (user.Profile, error)
}

var _ UserService = (*user.Service)(nil)

type userApi struct {
	svc      UserService
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, gate gate, svc UserService, validate *validator.Validate) {
	api := userApi{svc: svc, validate: validate}

	// pending and rejected accounts can still see where they stand
	g.GET("/me", api.me)
	g.PUT("/me", api.updateMe, gate.require())

	ug := g.Group("/users")
	ug.GET("", api.query, gate.require(user.AdminRoles...))
	ug.GET("/roles", api.queryRoles, gate.require(user.StaffRoles...))
	ug.GET("/:id", api.retrieve, gate.require(user.StaffRoles...))
	ug.PUT("/:id/approval", api.approve, gate.require(user.AdminRoles...))
}

// Handlers

func (api *userApi) me(ctx echo.Context) error {
	userID := contextUserID(ctx)
	access, auth, err := api.svc.Authorize(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "authorizing")
	}
	prof, err := api.svc.GetByID(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	prof.Roles = auth.ActiveRoles()
	return ctx.JSON(http.StatusOK, MeResponse{Profile: prof, Access: access})
}

func (api *userApi) updateMe(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prof, err := api.svc.Update(ctx.Request().Context(), contextUserID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Profile{})
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Orderings = ordering.Orderings

	profiles, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering profiles")
	}
	if profiles == nil {
		profiles = []user.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	prof, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *userApi) approve(ctx echo.Context) error {
	var data user.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if ctx.Param("id") == contextUserID(ctx) {
		return errHttpForbidden
	}

	prof, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "approving user")
	}
	return ctx.JSON(http.StatusOK, prof)
}

type MeResponse struct {
	Profile user.Profile `json:"profile"`
	Access  user.Access  `json:"access"`
}
