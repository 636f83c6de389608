package echoapi

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/team"
	"github.com/hoopdesk/hoopdesk/core/user"
	"github.com/hoopdesk/hoopdesk/services/metrics"
)

type authorizer interface {
	Authorize(ctx context.Context, userID string, required ...user.Role) (user.Access, user.AuthData, error)
}

// gate refuses pending, rejected and unprivileged accounts before a handler runs.
type gate struct {
	svc authorizer
}

func newGate(svc authorizer) gate {
	return gate{svc: svc}
}

// require lets approved users holding any of roles through; no roles means any approved user.
func (g gate) require(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID := contextUserID(ctx)
			if userID == "" {
				return errUnauthorized
			}
			access, auth, err := g.svc.Authorize(ctx.Request().Context(), userID, roles...)
			if err != nil {
				return errors.Wrap(err, "authorizing")
			}
			switch access {
			case user.AccessGranted:
				ctx.Set(contextAuthKey, auth)
				return next(ctx)
			case user.AccessPending:
				return errAccountPending
			case user.AccessRejected:
				return errAccountRejected
			default:
				return errHttpForbidden
			}
		}
	}
}

func contextAuth(ctx echo.Context) user.AuthData {
	auth, _ := ctx.Get(contextAuthKey).(user.AuthData)
	return auth
}

// isSelfOrAny reports whether the caller is id or holds one of roles.
func isSelfOrAny(ctx echo.Context, id string, roles ...user.Role) bool {
	auth := contextAuth(ctx)
	if auth.UserID == id && id != "" {
		return true
	}
	return auth.HasActiveRole(user.RoleSuperAdmin) || auth.HasActiveRole(roles...)
}

type playerLookup interface {
	Player(ctx context.Context, playerID string) (*team.Player, error)
}

// actForPlayer lets through the account linked to playerID and holders of roles.
// An unknown player is refused like someone else's.
func actForPlayer(ctx echo.Context, players playerLookup, playerID string, roles ...user.Role) error {
	if isSelfOrAny(ctx, "", roles...) {
		return nil
	}
	p, err := players.Player(ctx.Request().Context(), playerID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return errHttpForbidden
		}
		return errors.Wrap(err, "resolving player")
	}
	if !p.UserID.Valid || p.UserID.String != contextAuth(ctx).UserID {
		return errHttpForbidden
	}
	return nil
}

func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
