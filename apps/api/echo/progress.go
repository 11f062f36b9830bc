package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

type categoryParam struct {
	Category string `json:"category" validate:"required,category"`
}

// getCategoryParam validates the :category path param.
func getCategoryParam(ctx echo.Context, validate *validator.Validate) (string, error) {
	p := categoryParam{Category: ctx.Param("category")}
	if err := validate.Struct(p); err != nil {
		return "", err
	}
	return p.Category, nil
}

type progressAPI struct {
	tracker  *progress.Tracker
	userSvc  *user.Service
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := &progressAPI{
		tracker:  deps.Tracker,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	categories := g.Group("/categories", jwt)
	categories.GET("/:category/snapshot", api.snapshot)
}

func (api *progressAPI) snapshot(ctx echo.Context) error {
	category, err := getCategoryParam(ctx, api.validate)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	snap, err := api.tracker.Snapshot(ctx.Request().Context(), usr.ID, category)
	if err != nil {
		return errors.Wrap(err, "computing snapshot")
	}
	return ctx.JSON(http.StatusOK, snap)
}
