package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/notify"
)

type NotificationService interface {
	Preferences(ctx context.Context, userID string) (notify.Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, up notify.UpdatePreferences) (notify.Preferences, error)
}

var _ NotificationService = (*notify.Dispatcher)(nil)

type notificationApi struct {
	svc      NotificationService
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, gate gate, svc NotificationService, validate *validator.Validate) {
	api := notificationApi{svc: svc, validate: validate}

	ng := g.Group("/me/notifications", gate.require())
	ng.GET("", api.retrieve)
	ng.PUT("", api.update)
}

func (api *notificationApi) retrieve(ctx echo.Context) error {
	prefs, err := api.svc.Preferences(ctx.Request().Context(), contextUserID(ctx))
	if err != nil {
		return errors.Wrap(err, "fetching notification preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *notificationApi) update(ctx echo.Context) error {
	var data notify.UpdatePreferences
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePreferences")
	}
	prefs, err := api.svc.UpdatePreferences(ctx.Request().Context(), contextUserID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating notification preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}
