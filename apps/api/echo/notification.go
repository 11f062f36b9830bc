package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

type notificationResponse struct {
	notification.Notification
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type notificationAPI struct {
	conf            *core.Config
	logger          core.Logger
	notificationSvc *notification.Service
	sweeper         *notification.Sweeper
	userSvc         *user.Service
	validate        *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := &notificationAPI{
		conf:            deps.Conf,
		logger:          deps.Logger,
		notificationSvc: deps.NotificationSvc,
		sweeper:         deps.Sweeper,
		userSvc:         deps.UserSvc,
		validate:        deps.Validate,
	}
	owner := notificationOwnerMiddleware(deps.NotificationSvc, notification.ErrNotFound)

	notifications := g.Group("/notifications", jwt)
	notifications.GET("", api.list)
	notifications.POST("", api.create, adminMiddleware())
	notifications.POST("/read-all", api.markAllRead)
	notifications.GET("/:id", api.retrieve, owner)
	notifications.POST("/:id/read", api.markRead, owner)
	notifications.POST("/:id/deletion", api.markForDeletion, owner)
	notifications.DELETE("/:id/deletion", api.cancelDeletion, notificationOwnerMiddleware(deps.NotificationSvc, errTooLateToCancel))
}

func (api *notificationAPI) respond(ctx echo.Context, code int, n notification.Notification) error {
	return ctx.JSON(code, api.toResponse(n))
}

func (api *notificationAPI) toResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		Notification:     n,
		RemainingSeconds: int64(api.notificationSvc.RemainingTime(n).Seconds()),
	}
}

// list returns the user's notifications, newest first; ?unread=true only returns unread ones.
// Expired notifications may be swept first so that they are never listed.
func (api *notificationAPI) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	var unreadOnly bool
	if q := ctx.QueryParam("unread"); q != "" {
		if unreadOnly, err = strconv.ParseBool(q); err != nil {
			return core.NewValidationError(errors.New("invalid query"), core.FieldError{
				Field: "unread",
				Error: "must be a boolean",
			})
		}
	}

	rctx := ctx.Request().Context()
	if api.conf.Notification.SweepOnList && api.sweeper != nil {
		if _, err := api.sweeper.Sweep(rctx, api.notificationSvc.Now()); err != nil {
			api.logger.Warn("sweeping before listing notifications", err)
		}
	}

	notifs, err := api.notificationSvc.List(rctx, notification.QueryFilter{UserID: usr.ID, UnreadOnly: unreadOnly})
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	res := make([]notificationResponse, 0, len(notifs))
	for _, n := range notifs {
		res = append(res, api.toResponse(n))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *notificationAPI) create(ctx echo.Context) error {
	var nn notification.NewNotification
	if err := ctx.Bind(&nn); err != nil {
		return err
	}
	if err := nn.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.userSvc.GetByID(ctx.Request().Context(), nn.UserID); err != nil {
		return errors.Wrap(err, "finding recipient")
	}

	n, err := api.notificationSvc.Create(ctx.Request().Context(), nn)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return api.respond(ctx, http.StatusCreated, n)
}

func (api *notificationAPI) retrieve(ctx echo.Context) error {
	n, _ := ctx.Get(contextNotificationKey).(notification.Notification)
	return api.respond(ctx, http.StatusOK, n)
}

func (api *notificationAPI) markRead(ctx echo.Context) error {
	n, err := api.notificationSvc.MarkRead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return api.respond(ctx, http.StatusOK, n)
}

func (api *notificationAPI) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	count, err := api.notificationSvc.MarkAllRead(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": count})
}

func (api *notificationAPI) markForDeletion(ctx echo.Context) error {
	n, err := api.notificationSvc.MarkForDeletion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification for deletion")
	}
	return api.respond(ctx, http.StatusOK, n)
}

// cancelDeletion responds 410 when the sweep already removed the notification,
// including between the ownership check and the cancellation.
func (api *notificationAPI) cancelDeletion(ctx echo.Context) error {
	n, err := api.notificationSvc.CancelDeletion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errTooLateToCancel
		}
		return errors.Wrap(err, "cancelling notification deletion")
	}
	return api.respond(ctx, http.StatusOK, n)
}
