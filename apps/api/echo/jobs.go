package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/notification"
)

type jobsAPI struct {
	notificationSvc *notification.Service
	sweeper         *notification.Sweeper
}

// registerJobsAPI exposes the background jobs, for external schedulers.
func registerJobsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := &jobsAPI{
		notificationSvc: deps.NotificationSvc,
		sweeper:         deps.Sweeper,
	}

	jobs := g.Group("/jobs", jwt, adminMiddleware())
	jobs.POST("/sweep", api.sweep)
}

func (api *jobsAPI) sweep(ctx echo.Context) error {
	count, err := api.sweeper.Sweep(ctx.Request().Context(), api.notificationSvc.Now())
	if err != nil {
		return errors.Wrap(err, "sweeping notifications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": count})
}
