package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/grading"
	"github.com/hoopdesk/hoopdesk/core/user"
)

type GradingService interface {
	Metrics(ctx context.Context) ([]grading.Metric, error)
	Save(ctx context.Context, sg grading.SaveGrades) (grading.Grade, error)
	ForEvent(ctx context.Context, eventID string) ([]grading.Grade, error)
	ForPlayer(ctx context.Context, playerID string) ([]grading.Grade, error)
}

var _ GradingService = (*grading.Service)(nil)

var gradingRoles = []user.Role{user.RoleSuperAdmin, user.RoleAdmin, user.RoleCoach}

type gradingApi struct {
	svc      GradingService
	players  playerLookup
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, gate gate, svc GradingService, players playerLookup, validate *validator.Validate) {
	api := gradingApi{svc: svc, players: players, validate: validate}

	g.GET("/grading/metrics", api.metrics, gate.require())

	gg := g.Group("/grades")
	gg.POST("", api.save, gate.require(gradingRoles...))
	gg.POST("/preview", api.preview, gate.require(gradingRoles...))

	g.GET("/events/:id/grades", api.forEvent, gate.require(user.StaffRoles...))
	g.GET("/players/:id/grades", api.forPlayer, gate.require())
}

func (api *gradingApi) metrics(ctx echo.Context) error {
	metrics, err := api.svc.Metrics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing grading metrics")
	}
	if metrics == nil {
		metrics = []grading.Metric{}
	}
	return ctx.JSON(http.StatusOK, metrics)
}

func (api *gradingApi) bind(ctx echo.Context) (grading.SaveGrades, error) {
	var data grading.SaveGrades
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to SaveGrades")
	}
	return data, data.Validate(api.validate)
}

// save answers with the server computed overall; nothing provisional is returned on failure.
func (api *gradingApi) save(ctx echo.Context) error {
	data, err := api.bind(ctx)
	if err != nil {
		return err
	}
	grade, err := api.svc.Save(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, grade)
}

// preview computes the unconfirmed overall shown while a save is in flight.
func (api *gradingApi) preview(ctx echo.Context) error {
	data, err := api.bind(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grading.Provisional(data.EventID, data.PlayerID, data.Items))
}

func (api *gradingApi) forEvent(ctx echo.Context) error {
	grades, err := api.svc.ForEvent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing event grades")
	}
	if grades == nil {
		grades = []grading.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradingApi) forPlayer(ctx echo.Context) error {
	if err := actForPlayer(ctx, api.players, ctx.Param("id"), user.StaffRoles...); err != nil {
		return err
	}
	grades, err := api.svc.ForPlayer(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing player grades")
	}
	if grades == nil {
		grades = []grading.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}
