package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-inventory-ledger/internal/auth"
	"github.com/fekuna/omnipos-inventory-ledger/internal/httperr"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync/dto"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
)

type POSyncHandler struct {
	uc     posync.UseCase
	logger logger.ZapLogger
}

func NewPOSyncHandler(uc posync.UseCase, log logger.ZapLogger) *POSyncHandler {
	return &POSyncHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *POSyncHandler) Register(g *echo.Group) {
	g.POST("/purchase-orders/:id/sync/approval", h.SyncApproval)
	g.POST("/purchase-orders/:id/sync/receipt", h.SyncReceipt)
	g.POST("/purchase-orders/:id/sync/cancellation", h.SyncCancellation)
}

func (h *POSyncHandler) SyncApproval(c echo.Context) error {
	ctx := c.Request().Context()
	result, err := h.uc.SyncApproval(ctx, c.Param("id"), auth.ActorFromContext(ctx))
	return h.respond(c, result, err)
}

func (h *POSyncHandler) SyncReceipt(c echo.Context) error {
	ctx := c.Request().Context()
	result, err := h.uc.SyncReceipt(ctx, c.Param("id"), auth.ActorFromContext(ctx))
	return h.respond(c, result, err)
}

func (h *POSyncHandler) SyncCancellation(c echo.Context) error {
	ctx := c.Request().Context()

	var input dto.CancellationInput
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&input); err != nil {
			return c.JSON(http.StatusBadRequest, httperr.Response{Error: err.Error(), Code: "bad_request"})
		}
	}

	result, err := h.uc.SyncCancellation(ctx, c.Param("id"), auth.ActorFromContext(ctx), input.Reason)
	return h.respond(c, result, err)
}

func (h *POSyncHandler) respond(c echo.Context, result *dto.SyncResult, err error) error {
	if err != nil {
		return httperr.JSON(c, err)
	}
	if result.Failed > 0 {
		return c.JSON(http.StatusMultiStatus, result)
	}
	return c.JSON(http.StatusOK, result)
}
