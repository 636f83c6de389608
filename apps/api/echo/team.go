package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/team"
	"github.com/hoopdesk/hoopdesk/core/user"
)

type TeamService interface {
	Teams(ctx context.Context) ([]team.Team, error)
	Team(ctx context.Context, teamID string) (*team.Team, error)
	CreateTeam(ctx context.Context, nt team.NewTeam) (*team.Team, error)
	Players(ctx context.Context, teamID string) ([]team.Player, error)
	Player(ctx context.Context, playerID string) (*team.Player, error)
	Schedules(ctx context.Context, teamID string, from, to time.Time) ([]team.Schedule, error)
	CreateSchedule(ctx context.Context, createdBy string, ns team.NewSchedule) (*team.Schedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
}

var _ TeamService = (*team.Service)(nil)

var schedulerRoles = []user.Role{user.RoleSuperAdmin, user.RoleAdmin, user.RoleCoach}

type teamApi struct {
	svc      TeamService
	validate *validator.Validate
}

func registerTeamAPI(g *echo.Group, gate gate, svc TeamService, validate *validator.Validate) {
	api := teamApi{svc: svc, validate: validate}

	tg := g.Group("/teams")
	tg.GET("", api.query, gate.require())
	tg.POST("", api.create, gate.require(user.AdminRoles...))
	tg.GET("/:id", api.retrieve, gate.require())
	tg.GET("/:id/players", api.players, gate.require())
	tg.GET("/:id/schedules", api.schedules, gate.require())

	g.GET("/players", api.players, gate.require(user.StaffRoles...))
	g.GET("/players/:id", api.player, gate.require())

	sg := g.Group("/schedules", gate.require(schedulerRoles...))
	sg.POST("", api.createSchedule)
	sg.DELETE("/:id", api.deleteSchedule)
}

func (api *teamApi) query(ctx echo.Context) error {
	teams, err := api.svc.Teams(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing teams")
	}
	if teams == nil {
		teams = []team.Team{}
	}
	return ctx.JSON(http.StatusOK, teams)
}

func (api *teamApi) create(ctx echo.Context) error {
	var data team.NewTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTeam(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Team(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "fetching team")
	}
	return ctx.JSON(http.StatusOK, t)
}

// players lists the active players of the team in the path, or of every team.
func (api *teamApi) players(ctx echo.Context) error {
	players, err := api.svc.Players(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing players")
	}
	if players == nil {
		players = []team.Player{}
	}
	return ctx.JSON(http.StatusOK, players)
}

func (api *teamApi) player(ctx echo.Context) error {
	p, err := api.svc.Player(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "fetching player")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *teamApi) schedules(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx, 0, 30); err != nil {
		return err
	}
	events, err := api.svc.Schedules(ctx.Request().Context(), ctx.Param("id"), dr.From, dr.To)
	if err != nil {
		return errors.Wrap(err, "listing schedules")
	}
	if events == nil {
		events = []team.Schedule{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *teamApi) createSchedule(ctx echo.Context) error {
	var data team.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.CreateSchedule(ctx.Request().Context(), contextUserID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *teamApi) deleteSchedule(ctx echo.Context) error {
	if err := api.svc.DeleteSchedule(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}
