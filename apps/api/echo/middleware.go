package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/notification"
)

var contextNotificationKey = "notification"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// notificationOwnerMiddleware loads the :id notification; other users' notifications are not found.
// notFound is returned instead of notification.ErrNotFound when the notification does not exist.
func notificationOwnerMiddleware(svc *notification.Service, notFound error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			n, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == notification.ErrNotFound {
					return notFound
				}
				return errors.Wrap(err, "getting notification")
			}
			if n.UserID != claims.Subject {
				return notification.ErrNotFound
			}
			ctx.Set(contextNotificationKey, n)
			return next(ctx)
		}
	}
}
