package httperr

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/labstack/echo/v4"
)

type Response struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Status maps a ledger error to an HTTP status and a stable code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, ledger.ErrPurchaseOrderNotFound):
		return http.StatusNotFound, "purchase_order_not_found"
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ledger.ErrInvalidReason):
		return http.StatusBadRequest, "invalid_reason"
	case errors.Is(err, ledger.ErrNoLineItems):
		return http.StatusUnprocessableEntity, "no_line_items"
	case errors.Is(err, ledger.ErrInvalidPurchaseOrderState):
		return http.StatusConflict, "invalid_purchase_order_state"
	case errors.Is(err, ledger.ErrNegativeStock):
		return http.StatusUnprocessableEntity, "negative_stock"
	case errors.Is(err, ledger.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, ledger.ErrWriteFailure):
		return http.StatusServiceUnavailable, "write_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func JSON(c echo.Context, err error) error {
	status, code := Status(err)
	return c.JSON(status, Response{Error: err.Error(), Code: code})
}
