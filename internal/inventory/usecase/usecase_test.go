package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-inventory-ledger/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	ledgerdto "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/repository"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*inventoryUseCase, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	writer := ledger.NewWriter(repo, ledger.Config{}, logger.NewNop())
	return NewInventoryUseCase(repo, writer, logger.NewNop()).(*inventoryUseCase), repo
}

func TestInitializeStockRecord_BooksOpeningBalance(t *testing.T) {
	uc, repo := setup()

	rec, err := uc.InitializeStockRecord(context.Background(), &dto.InitializeStockInput{
		TenantID:      "t1",
		UserID:        "u1",
		ProductID:     "p1",
		SKU:           "SKU-1",
		OpeningOnHand: 25,
		Allocated:     5,
		LowThreshold:  10,
		AlertsEnabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(25), rec.OnHand)
	assert.Equal(t, int64(20), rec.Available())

	entries := repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.TransactionStocktakeAdjustment, entries[0].TransactionType)
	assert.Equal(t, "OPENING-SKU-1", entries[0].ReferenceNumber)
	assert.Equal(t, int64(0), entries[0].OnHandBefore)
	assert.Equal(t, int64(25), entries[0].OnHandAfter)
}

func TestInitializeStockRecord_ExistingRecordIsReturned(t *testing.T) {
	uc, repo := setup()
	repo.PutStockRecord(model.StockRecord{ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 3})

	rec, err := uc.InitializeStockRecord(context.Background(), &dto.InitializeStockInput{
		TenantID: "t1", ProductID: "p1", SKU: "SKU-1", OpeningOnHand: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.OnHand)
	assert.Empty(t, repo.Entries())

	_, err = uc.InitializeStockRecord(context.Background(), &dto.InitializeStockInput{
		TenantID: "t2", ProductID: "p1", SKU: "SKU-1",
	})
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestInitializeStockRecord_ConcurrentCallsBookOnce(t *testing.T) {
	uc, repo := setup()
	input := &dto.InitializeStockInput{TenantID: "t1", ProductID: "p1", SKU: "SKU-1", OpeningOnHand: 10}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.InitializeStockRecord(context.Background(), input)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := repo.GetStockRecord(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.OnHand)
	assert.Len(t, repo.Entries(), 1)
}

func TestGetStockRecord(t *testing.T) {
	uc, repo := setup()
	repo.PutStockRecord(model.StockRecord{ProductID: "p1", TenantID: "t1", OnHand: 3})

	rec, err := uc.GetStockRecord(context.Background(), "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.OnHand)

	_, err = uc.GetStockRecord(context.Background(), "t2", "p1")
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	_, err = uc.GetStockRecord(context.Background(), "t1", "nope")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)
}

func TestListLowStock(t *testing.T) {
	uc, repo := setup()
	repo.PutStockRecord(model.StockRecord{ProductID: "low", TenantID: "t1", OnHand: 6, Allocated: 2, LowThreshold: 5})
	repo.PutStockRecord(model.StockRecord{ProductID: "fine", TenantID: "t1", OnHand: 60, LowThreshold: 5})
	repo.PutStockRecord(model.StockRecord{ProductID: "untracked", TenantID: "t1", OnHand: 0})
	repo.PutStockRecord(model.StockRecord{ProductID: "other", TenantID: "t2", OnHand: 1, LowThreshold: 5})

	items, total, err := uc.ListLowStock(context.Background(), "t1", 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "low", items[0].ProductID)

	_, _, err = uc.ListLowStock(context.Background(), "", 1, 50)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestListEntries_ScopedToTenant(t *testing.T) {
	uc, repo := setup()
	repo.PutStockRecord(model.StockRecord{ProductID: "p1", TenantID: "t1", SKU: "A"})
	repo.PutStockRecord(model.StockRecord{ProductID: "p2", TenantID: "t2", SKU: "B"})

	w := ledger.NewWriter(repo, ledger.Config{}, logger.NewNop())
	for _, pid := range []string{"p1", "p1", "p2"} {
		_, err := w.Write(context.Background(), &ledger.WriteRequest{
			ProductID:       pid,
			Delta:           model.Delta{OnHand: 1},
			Type:            model.TransactionManualAdjustment,
			Source:          model.Source{Type: model.SourceAdjustment, ID: "s"},
			ReferenceNumber: "ADJ-1",
		})
		require.NoError(t, err)
	}

	entries, total, err := uc.ListEntries(context.Background(), &ledgerdto.EntryFilters{TenantID: "t1", PageSize: 1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].OnHandAfter, "newest first")

	_, _, err = uc.ListEntries(context.Background(), &ledgerdto.EntryFilters{})
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}
