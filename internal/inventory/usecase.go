package inventory

import (
	"context"

	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory/dto"
	ledgerdto "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

type UseCase interface {
	GetStockRecord(ctx context.Context, tenantID, productID string) (*model.StockRecord, error)
	ListLowStock(ctx context.Context, tenantID string, page, pageSize int) ([]model.StockRecord, int, error)
	ListEntries(ctx context.Context, filters *ledgerdto.EntryFilters) ([]model.LedgerEntry, int, error)
	InitializeStockRecord(ctx context.Context, input *dto.InitializeStockInput) (*model.StockRecord, error)
}
