package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/status"
)

type (
	statusApi struct {
		ctrl *status.Controller
	}

	statusWriteRequest struct {
		Value string `json:"value"`
	}

	statusResponse struct {
		EntityID string       `json:"entity_id"`
		Key      string       `json:"field_key"`
		Value    status.Value `json:"value"`
		Pending  bool         `json:"pending,omitempty"`
	}
)

func registerStatusAPI(g *echo.Group, jwt echo.MiddlewareFunc, ctrl *status.Controller) {
	api := statusApi{ctrl: ctrl}

	sg := g.Group("/status", jwt)
	sg.GET("/:entity/:key", api.retrieve)
	sg.PUT("/:entity/:key", api.update)
}

// Handlers

func (api *statusApi) retrieve(ctx echo.Context) error {
	entityID, key := ctx.Param("entity"), ctx.Param("key")

	val, err := api.ctrl.Local(ctx.Request().Context(), entityID, key)
	if err != nil {
		return errors.Wrap(err, "reading status")
	}

	return ctx.JSON(http.StatusOK, statusResponse{EntityID: entityID, Key: key, Value: val})
}

// update applies the write optimistically and returns 202 immediately; the
// controller converges the store in the background.
func (api *statusApi) update(ctx echo.Context) error {
	entityID, key := ctx.Param("entity"), ctx.Param("key")

	var data statusWriteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to statusWriteRequest")
	}

	val, err := status.ParseValue(data.Value)
	if err != nil {
		return err
	}

	api.ctrl.Mutate(ctx.Request().Context(), entityID, key, val)

	return ctx.JSON(http.StatusAccepted, statusResponse{
		EntityID: entityID,
		Key:      key,
		Value:    val,
		Pending:  true,
	})
}
