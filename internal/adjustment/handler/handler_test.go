package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/usecase"
	"github.com/fekuna/omnipos-inventory-ledger/internal/auth"
	"github.com/fekuna/omnipos-inventory-ledger/internal/httperr"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/repository"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound/outboundtest"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(model.StockRecord{ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 10})
	repo.PutStockRecord(model.StockRecord{ProductID: "p2", TenantID: "t1", SKU: "SKU-2", OnHand: 4})

	writer := ledger.NewWriter(repo, ledger.Config{}, logger.NewNop())
	uc := usecase.NewAdjustmentUseCase(writer, outboundtest.New().Effects, logger.NewNop())

	e := echo.New()
	NewAdjustmentHandler(uc, logger.NewNop()).Register(e.Group("/api/v1", auth.Middleware()))
	return e
}

func do(e *echo.Echo, tenant, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenant != "" {
		req.Header.Set(auth.HeaderTenantID, tenant)
		req.Header.Set(auth.HeaderUserID, "u1")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdjustOne(t *testing.T) {
	e := newServer(t)

	rec := do(e, "t1", "/api/v1/inventory/adjustments", `{"product_id":"p1","delta_on_hand":-3,"reason":"damaged"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry model.LedgerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, int64(7), entry.OnHandAfter)
	require.NotNil(t, entry.CreatedBy)
	assert.Equal(t, "u1", *entry.CreatedBy)
}

func TestAdjustOne_Errors(t *testing.T) {
	tests := []struct {
		name       string
		tenant     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid reason", "t1", `{"product_id":"p1","delta_on_hand":1,"reason":"lost"}`, http.StatusBadRequest, "invalid_reason"},
		{"unknown product", "t1", `{"product_id":"zz","delta_on_hand":1,"reason":"manual"}`, http.StatusNotFound, "product_not_found"},
		{"other tenant", "t9", `{"product_id":"p1","delta_on_hand":1,"reason":"manual"}`, http.StatusForbidden, "forbidden"},
		{"no tenant header", "", `{"product_id":"p1","delta_on_hand":1,"reason":"manual"}`, http.StatusForbidden, "forbidden"},
		{"malformed body", "t1", `{"product_id":`, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(t)

			rec := do(e, tt.tenant, "/api/v1/inventory/adjustments", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp httperr.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestAdjustBulk_StatusReflectsOutcome(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"all applied", `{"reason":"stocktake","items":[{"product_id":"p1","delta_on_hand":1},{"product_id":"p2","delta_on_hand":-1}]}`, http.StatusOK},
		{"partial", `{"reason":"stocktake","items":[{"product_id":"p1","delta_on_hand":1},{"product_id":"nope","delta_on_hand":1}]}`, http.StatusMultiStatus},
		{"none applied", `{"reason":"correction","items":[{"product_id":"nope","delta_on_hand":1}]}`, http.StatusUnprocessableEntity},
		{"empty batch", `{"reason":"correction","items":[]}`, http.StatusUnprocessableEntity},
		{"manual not allowed", `{"reason":"manual","items":[{"product_id":"p1","delta_on_hand":1}]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(t)
			rec := do(e, "t1", "/api/v1/inventory/adjustments/bulk", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdjustBulk_PartialBody(t *testing.T) {
	e := newServer(t)

	rec := do(e, "t1", "/api/v1/inventory/adjustments/bulk",
		`{"reason":"stocktake","reference_number":"STK-COUNT-1","items":[{"product_id":"p1","delta_on_hand":1},{"product_id":"nope","delta_on_hand":1}]}`)
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var result dto.BulkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "STK-COUNT-1", result.ReferenceNumber)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 2)
	assert.Contains(t, result.Results[1].Error, "product not found")
}
