package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory"
	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	ledgerdto "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo   ledger.Repository
	writer *ledger.Writer
	logger logger.ZapLogger
}

func NewInventoryUseCase(repo ledger.Repository, writer *ledger.Writer, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		writer: writer,
		logger: log,
	}
}

func (uc *inventoryUseCase) GetStockRecord(ctx context.Context, tenantID, productID string) (*model.StockRecord, error) {
	rec, err := uc.repo.GetStockRecord(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrProductNotFound, productID)
	}
	if rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrForbidden, productID)
	}
	return rec, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, tenantID string, page, pageSize int) ([]model.StockRecord, int, error) {
	if tenantID == "" {
		return nil, 0, ledger.ErrForbidden
	}
	return uc.repo.ListStockRecords(ctx, &ledgerdto.StockFilters{
		TenantID: tenantID,
		LowStock: true,
		Page:     page,
		PageSize: pageSize,
	})
}

func (uc *inventoryUseCase) ListEntries(ctx context.Context, filters *ledgerdto.EntryFilters) ([]model.LedgerEntry, int, error) {
	if filters.TenantID == "" {
		return nil, 0, ledger.ErrForbidden
	}
	return uc.repo.ListEntries(ctx, filters)
}

// InitializeStockRecord creates a product's stock record with zero counters.
// A non-zero opening quantity is then booked through the ledger so the
// record's history reconstructs from its entries alone.
func (uc *inventoryUseCase) InitializeStockRecord(ctx context.Context, input *dto.InitializeStockInput) (*model.StockRecord, error) {
	if input.TenantID == "" {
		return nil, ledger.ErrForbidden
	}

	now := time.Now().UTC()
	rec := &model.StockRecord{
		ProductID:         input.ProductID,
		TenantID:          input.TenantID,
		SKU:               input.SKU,
		Allocated:         input.Allocated,
		LowThreshold:      input.LowThreshold,
		CriticalThreshold: input.CriticalThreshold,
		MaxThreshold:      input.MaxThreshold,
		AlertsEnabled:     input.AlertsEnabled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := uc.repo.CreateStockRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	// Only the call that inserted the row books the opening balance.
	if !created {
		existing, err := uc.repo.GetStockRecord(ctx, input.ProductID)
		if err != nil {
			return nil, err
		}
		if existing == nil || existing.TenantID != input.TenantID {
			return nil, fmt.Errorf("%w: %s", ledger.ErrForbidden, input.ProductID)
		}
		return existing, nil
	}

	if input.OpeningOnHand != 0 {
		entry, err := uc.writer.Write(ctx, &ledger.WriteRequest{
			ProductID:       rec.ProductID,
			TenantID:        rec.TenantID,
			Delta:           model.Delta{OnHand: input.OpeningOnHand},
			Type:            model.TransactionStocktakeAdjustment,
			Source:          model.Source{Type: model.SourceAdjustment, ID: uuid.New().String()},
			ReferenceNumber: "OPENING-" + rec.SKU,
			Reason:          "stocktake",
			Notes:           "opening balance",
			Actor:           input.UserID,
		})
		if err != nil {
			return nil, err
		}
		rec.OnHand = entry.OnHandAfter
	}

	uc.logger.Info("stock record initialised",
		zap.String("product_id", rec.ProductID),
		zap.String("sku", rec.SKU),
		zap.Int64("on_hand", rec.OnHand),
	)
	return uc.repo.GetStockRecord(ctx, rec.ProductID)
}
