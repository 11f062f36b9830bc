package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/user"
)

type certificateAPI struct {
	certificateSvc *certificate.Service
	userSvc        *user.Service
	validate       *validator.Validate
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := &certificateAPI{
		certificateSvc: deps.CertificateSvc,
		userSvc:        deps.UserSvc,
		validate:       deps.Validate,
	}

	g.POST("/categories/:category/certificate", api.issueOrRefresh, jwt)
	g.GET("/categories/:category/certificate", api.retrieve, jwt)
	g.GET("/certificates", api.list, jwt)

	hooks := g.Group("/hooks", jwt, adminMiddleware())
	hooks.POST("/users/:user/categories/:category/check-outdated", api.checkOutdated)
	hooks.POST("/categories/:category/course-added", api.courseAdded)
}

// issueOrRefresh responds 201 when the certificate was issued and 200 when an existing one was refreshed.
func (api *certificateAPI) issueOrRefresh(ctx echo.Context) error {
	category, err := getCategoryParam(ctx, api.validate)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	cert, err := api.certificateSvc.IssueOrRefresh(ctx.Request().Context(), usr.ID, category)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	if cert.UpdatedAt == nil {
		return ctx.JSON(http.StatusCreated, cert)
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateAPI) retrieve(ctx echo.Context) error {
	category, err := getCategoryParam(ctx, api.validate)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	cert, err := api.certificateSvc.Get(ctx.Request().Context(), usr.ID, category)
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateAPI) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	certs, err := api.certificateSvc.List(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateAPI) checkOutdated(ctx echo.Context) error {
	category, err := getCategoryParam(ctx, api.validate)
	if err != nil {
		return err
	}

	outdated, err := api.certificateSvc.CheckOutdated(ctx.Request().Context(), ctx.Param("user"), category)
	if err != nil {
		return errors.Wrap(err, "checking certificate")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"outdated": outdated})
}

func (api *certificateAPI) courseAdded(ctx echo.Context) error {
	category, err := getCategoryParam(ctx, api.validate)
	if err != nil {
		return err
	}

	count, err := api.certificateSvc.CheckOutdatedForCategory(ctx.Request().Context(), category)
	if err != nil {
		return errors.Wrap(err, "checking category certificates")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"outdated_count": count})
}
