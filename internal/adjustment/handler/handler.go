package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment"
	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/auth"
	"github.com/fekuna/omnipos-inventory-ledger/internal/httperr"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
)

type AdjustmentHandler struct {
	uc     adjustment.UseCase
	logger logger.ZapLogger
}

func NewAdjustmentHandler(uc adjustment.UseCase, log logger.ZapLogger) *AdjustmentHandler {
	return &AdjustmentHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *AdjustmentHandler) Register(g *echo.Group) {
	g.POST("/inventory/adjustments", h.AdjustOne)
	g.POST("/inventory/adjustments/bulk", h.AdjustBulk)
}

func (h *AdjustmentHandler) AdjustOne(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(ctx)

	var input dto.AdjustOneInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, httperr.Response{Error: err.Error(), Code: "bad_request"})
	}
	input.TenantID = actor.TenantID
	input.UserID = actor.UserID

	entry, err := h.uc.AdjustOne(ctx, &input)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// AdjustBulk answers 200 when every item applied, 207 when some failed and
// 422 when none did. Item errors are in the body either way.
func (h *AdjustmentHandler) AdjustBulk(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(ctx)

	var input dto.AdjustBulkInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, httperr.Response{Error: err.Error(), Code: "bad_request"})
	}
	input.TenantID = actor.TenantID
	input.UserID = actor.UserID

	result, err := h.uc.AdjustBulk(ctx, &input)
	if err != nil {
		return httperr.JSON(c, err)
	}

	status := http.StatusOK
	switch {
	case result.Partial():
		status = http.StatusMultiStatus
	case result.Successful == 0:
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, result)
}
