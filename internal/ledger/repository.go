package ledger

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

type Repository interface {
	// RunInTx runs fn inside one transaction. fn's error rolls it back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Stock records
	GetStockRecord(ctx context.Context, productID string) (*model.StockRecord, error)
	// CreateStockRecord reports false when a record for the product already exists.
	CreateStockRecord(ctx context.Context, rec *model.StockRecord) (bool, error)
	ListStockRecords(ctx context.Context, filters *dto.StockFilters) ([]model.StockRecord, int, error)
	ListAlertCandidates(ctx context.Context, checkedBefore time.Time, limit int) ([]model.StockRecord, error)
	TouchLastChecked(ctx context.Context, productID string, at time.Time) error

	// Ledger history
	ListEntries(ctx context.Context, filters *dto.EntryFilters) ([]model.LedgerEntry, int, error)
}

// Tx is the view of storage inside one transaction. Stock record reads here
// lock the row until the transaction ends.
type Tx interface {
	LockStockRecord(ctx context.Context, productID string) (*model.StockRecord, error)
	UpdateStockRecord(ctx context.Context, rec *model.StockRecord) error
	InsertEntry(ctx context.Context, entry *model.LedgerEntry) error
	ListSourceEntries(ctx context.Context, sourceType model.SourceType, sourceID, productID string) ([]model.LedgerEntry, error)
	UpdateEntryStatus(ctx context.Context, update *dto.StatusUpdate) (int64, error)

	GetPurchaseOrder(ctx context.Context, id string) (*model.PurchaseOrder, error)
	SetFulfillmentState(ctx context.Context, poID string, state model.FulfillmentState) error
}
