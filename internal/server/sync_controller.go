package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/internal/usecase"
)

type SyncController interface {
	ApplyBatch(c echo.Context) error
}

type syncController struct {
	inboundUsecase usecase.InboundUsecase
}

func NewSyncController(inboundUsecase usecase.InboundUsecase) SyncController {
	return &syncController{
		inboundUsecase: inboundUsecase,
	}
}

// ApplyBatch receives one delivery from a peer node. The response carries a
// per-item status so the sender can tell applied from duplicate; any error
// here makes the sender keep the batch and retry.
func (sc *syncController) ApplyBatch(c echo.Context) error {
	var req models.ApplyBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	resp, err := sc.inboundUsecase.ApplyBatch(ctx, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
