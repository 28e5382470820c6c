package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/auth"
	"github.com/fekuna/omnipos-inventory-ledger/internal/httperr"
	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory"
	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory/dto"
	ledgerdto "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) Register(g *echo.Group) {
	g.POST("/inventory/products", h.InitializeStockRecord)
	g.GET("/inventory/products/:product_id", h.GetStockRecord)
	g.GET("/inventory/low-stock", h.ListLowStock)
	g.GET("/inventory/ledger", h.ListEntries)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (h *InventoryHandler) GetStockRecord(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.uc.GetStockRecord(ctx, auth.GetTenantID(ctx), c.Param("product_id"))
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewStockView(rec))
}

func (h *InventoryHandler) ListLowStock(c echo.Context) error {
	ctx := c.Request().Context()
	page, pageSize := pagination(c)

	items, count, err := h.uc.ListLowStock(ctx, auth.GetTenantID(ctx), page, pageSize)
	if err != nil {
		return httperr.JSON(c, err)
	}

	views := make([]dto.StockView, len(items))
	for i := range items {
		views[i] = dto.NewStockView(&items[i])
	}
	return c.JSON(http.StatusOK, listResponse[dto.StockView]{Items: views, Total: count})
}

func (h *InventoryHandler) ListEntries(c echo.Context) error {
	ctx := c.Request().Context()
	page, pageSize := pagination(c)

	filters := &ledgerdto.EntryFilters{
		TenantID:        auth.GetTenantID(ctx),
		ProductID:       c.QueryParam("product_id"),
		TransactionType: c.QueryParam("transaction_type"),
		SourceType:      c.QueryParam("source_type"),
		SourceID:        c.QueryParam("source_id"),
		ReferenceNumber: c.QueryParam("reference_number"),
		Status:          c.QueryParam("status"),
		Page:            page,
		PageSize:        pageSize,
	}
	if t, err := time.Parse(time.RFC3339, c.QueryParam("start_date")); err == nil {
		filters.StartDate = &t
	}
	if t, err := time.Parse(time.RFC3339, c.QueryParam("end_date")); err == nil {
		filters.EndDate = &t
	}

	entries, count, err := h.uc.ListEntries(ctx, filters)
	if err != nil {
		return httperr.JSON(c, err)
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return c.JSON(http.StatusOK, listResponse[model.LedgerEntry]{Items: entries, Total: count})
}

func (h *InventoryHandler) InitializeStockRecord(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(ctx)

	var input dto.InitializeStockInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, httperr.Response{Error: err.Error(), Code: "bad_request"})
	}
	input.TenantID = actor.TenantID
	input.UserID = actor.UserID

	rec, err := h.uc.InitializeStockRecord(ctx, &input)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewStockView(rec))
}

func pagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	pageSize = min(pageSize, 200)
	return page, pageSize
}
