package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/video"
)

type VideoService interface {
	AnalyzeShot(ctx context.Context, req video.Request) (video.ShotAnalysis, error)
	AnalyzeTechnique(ctx context.Context, req video.Request) (video.TechniqueAnalysis, error)
}

var _ VideoService = (*video.Service)(nil)

type videoApi struct {
	svc      VideoService
	validate *validator.Validate
}

func registerVideoAPI(g *echo.Group, gate gate, svc VideoService, validate *validator.Validate) {
	api := videoApi{svc: svc, validate: validate}

	vg := g.Group("/video", gate.require())
	vg.POST("/shot", api.shot)
	vg.POST("/technique", api.technique)
}

func (api *videoApi) bind(ctx echo.Context) (video.Request, error) {
	var data video.Request
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to Request")
	}
	return data, data.Validate(api.validate)
}

func (api *videoApi) shot(ctx echo.Context) error {
	req, err := api.bind(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.AnalyzeShot(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "analyzing shot")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *videoApi) technique(ctx echo.Context) error {
	req, err := api.bind(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.AnalyzeTechnique(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "analyzing technique")
	}
	return ctx.JSON(http.StatusOK, res)
}
