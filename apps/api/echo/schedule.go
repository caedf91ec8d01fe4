package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/schedule"
)

type scheduleApi struct {
	svc        schedule.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerScheduleAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc schedule.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := scheduleApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	sg := g.Group("/schedules", jwt)
	sg.POST("", api.generate)
	sg.POST("/estimate", api.estimate)
	sg.GET("", api.query)
	sg.POST("/bulk", api.bulk)
	sg.DELETE("/generations/:id", api.destroyGeneration)
}

// Handlers

func (api *scheduleApi) generate(ctx echo.Context) error {
	ownerID, err := getContextOwnerID(ctx)
	if err != nil {
		return err
	}

	var data schedule.GenerationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerationRequest")
	}
	data.OwnerID = ownerID

	res, err := api.svc.Generate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating schedule")
	}

	return ctx.JSON(http.StatusCreated, res)
}

func (api *scheduleApi) estimate(ctx echo.Context) error {
	ownerID, err := getContextOwnerID(ctx)
	if err != nil {
		return err
	}

	var data schedule.GenerationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerationRequest")
	}
	data.OwnerID = ownerID

	count, err := api.svc.Estimate(data)
	if err != nil {
		return errors.Wrap(err, "estimating schedule")
	}

	return ctx.JSON(http.StatusOK, echo.Map{"estimated_count": count})
}

func (api *scheduleApi) query(ctx echo.Context) error {
	ownerID, err := getContextOwnerID(ctx)
	if err != nil {
		return err
	}

	var params ListParams
	params.Bind(ctx)

	page, err := api.svc.Query(ctx.Request().Context(), ownerID, params.Filter)
	if err != nil {
		return errors.Wrap(err, "querying schedule")
	}

	return ctx.JSON(http.StatusOK, page)
}

func (api *scheduleApi) bulk(ctx echo.Context) error {
	ownerID, err := getContextOwnerID(ctx)
	if err != nil {
		return err
	}

	var data schedule.BulkAction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAction")
	}

	res, err := api.svc.Bulk(ctx.Request().Context(), ownerID, data)
	if err != nil {
		return errors.Wrap(err, "applying bulk action")
	}

	return ctx.JSON(http.StatusOK, res)
}

func (api *scheduleApi) destroyGeneration(ctx echo.Context) error {
	ownerID, err := getContextOwnerID(ctx)
	if err != nil {
		return err
	}

	id := ctx.Param("id")
	if id == "" {
		return errHttpNotFound
	}

	res, err := api.svc.DeleteGeneration(ctx.Request().Context(), ownerID, id)
	if err != nil {
		return errors.Wrap(err, "deleting generation")
	}

	return ctx.JSON(http.StatusOK, res)
}
