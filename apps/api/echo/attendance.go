package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/attendance"
	"github.com/hoopdesk/hoopdesk/core/user"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceService interface {
	SaveBatch(ctx context.Context, records []attendance.RecordInput) (attendance.BatchResult, error)
	ForEvent(ctx context.Context, eventID string) ([]attendance.Record, error)
	ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]attendance.Record, error)
	Export(ctx context.Context, teamID string, from, to time.Time) (*bytes.Buffer, error)
}

var _ AttendanceService = (*attendance.Service)(nil)

type attendanceApi struct {
	svc      AttendanceService
	players  playerLookup
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, gate gate, svc AttendanceService, players playerLookup, validate *validator.Validate) {
	api := attendanceApi{svc: svc, players: players, validate: validate}

	g.POST("/attendance", api.saveBatch, gate.require(user.StaffRoles...))
	g.GET("/events/:id/attendance", api.forEvent, gate.require(user.StaffRoles...))
	g.GET("/players/:id/attendance", api.forPlayer, gate.require())
	g.GET("/teams/:id/attendance/export", api.export, gate.require(user.StaffRoles...))
}

func (api *attendanceApi) saveBatch(ctx echo.Context) error {
	var data attendance.Batch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Batch")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.SaveBatch(ctx.Request().Context(), data.Records)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) forEvent(ctx echo.Context) error {
	records, err := api.svc.ForEvent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing event attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) forPlayer(ctx echo.Context) error {
	if err := actForPlayer(ctx, api.players, ctx.Param("id"), user.StaffRoles...); err != nil {
		return err
	}
	var dr DateRange
	if err := dr.Bind(ctx, -90, 0); err != nil {
		return err
	}
	records, err := api.svc.ForPlayer(ctx.Request().Context(), ctx.Param("id"), dr.From, dr.To)
	if err != nil {
		return errors.Wrap(err, "listing player attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	var dr DateRange
	if err := dr.Bind(ctx, -30, 0); err != nil {
		return err
	}
	buf, err := api.svc.Export(ctx.Request().Context(), ctx.Param("id"), dr.From, dr.To)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	name := fmt.Sprintf("attendance_%s_%s.xlsx", dr.From.Format(core.DateLayout), dr.To.Format(core.DateLayout))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Stream(http.StatusOK, xlsxMIME, buf)
}
