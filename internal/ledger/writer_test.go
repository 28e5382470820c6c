package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/repository"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newWriter(t *testing.T, cfg ledger.Config) (*ledger.Writer, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(model.StockRecord{
		ProductID: "p1",
		TenantID:  "t1",
		SKU:       "SKU-1",
		OnHand:    10,
		Allocated: 2,
		Inbound:   4,
	})
	return ledger.NewWriter(repo, cfg, logger.NewNop()), repo
}

func adjustment(delta int64) *ledger.WriteRequest {
	return &ledger.WriteRequest{
		ProductID:       "p1",
		TenantID:        "t1",
		Delta:           model.Delta{OnHand: delta},
		Type:            model.TransactionManualAdjustment,
		Source:          model.Source{Type: model.SourceAdjustment, ID: "adj-1"},
		ReferenceNumber: "ADJ-TEST",
		Reason:          "manual",
		Actor:           "u1",
	}
}

func TestWrite_RecordsBeforeAndAfter(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{})

	entry, err := w.Write(context.Background(), adjustment(-3))
	require.NoError(t, err)

	assert.Equal(t, int64(10), entry.OnHandBefore)
	assert.Equal(t, int64(7), entry.OnHandAfter)
	assert.Equal(t, int64(-3), entry.QuantityChange)
	assert.Equal(t, int64(2), entry.AllocatedBefore)
	assert.Equal(t, int64(2), entry.AllocatedAfter)
	assert.Equal(t, model.EntryCompleted, entry.Status)
	assert.Equal(t, "SKU-1", entry.SKU)
	require.NotNil(t, entry.CreatedBy)
	assert.Equal(t, "u1", *entry.CreatedBy)
	assert.True(t, entry.Balanced())

	rec, _ := repo.GetStockRecord(context.Background(), "p1")
	assert.Equal(t, int64(7), rec.OnHand)
	assert.Len(t, repo.Entries(), 1)
}

func TestWrite_UnknownActorIsNotRecorded(t *testing.T) {
	w, _ := newWriter(t, ledger.Config{})
	req := adjustment(1)
	req.Actor = "unknown"

	entry, err := w.Write(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, entry.CreatedBy)
}

func TestWrite_InboundIsFlooredAtZero(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{})
	req := adjustment(0)
	req.Delta = model.Delta{Inbound: -10}

	entry, err := w.Write(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), entry.InboundChange)
	assert.Equal(t, int64(0), entry.InboundAfter)

	rec, _ := repo.GetStockRecord(context.Background(), "p1")
	assert.Equal(t, int64(0), rec.Inbound)
}

func TestWrite_FloorOnHand(t *testing.T) {
	w, _ := newWriter(t, ledger.Config{})
	req := adjustment(-25)
	req.FloorOnHand = true

	entry, err := w.Write(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), entry.QuantityChange)
	assert.Equal(t, int64(0), entry.OnHandAfter)
}

func TestWrite_NegativeStockAllowedByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(model.StockRecord{ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 10})
	w := ledger.NewWriter(repo, ledger.Config{}, logger.Wrap(zap.New(core)))

	entry, err := w.Write(context.Background(), adjustment(-15))
	require.NoError(t, err)
	assert.Equal(t, int64(-5), entry.OnHandAfter)

	warnings := logs.FilterMessage("on_hand below zero after write").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(-5), warnings[0].ContextMap()["on_hand_after"])
}

func TestWrite_NegativeStockEnforced(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{EnforceNegativeFloor: true, NegativeFloor: 3})

	_, err := w.Write(context.Background(), adjustment(-14))
	assert.ErrorIs(t, err, ledger.ErrNegativeStock)
	assert.Empty(t, repo.Entries())

	entry, err := w.Write(context.Background(), adjustment(-13))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), entry.OnHandAfter)
}

func TestWrite_CallerErrors(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{})

	tests := []struct {
		name    string
		mutate  func(*ledger.WriteRequest)
		wantErr error
	}{
		{
			name:    "unknown product",
			mutate:  func(r *ledger.WriteRequest) { r.ProductID = "missing" },
			wantErr: ledger.ErrProductNotFound,
		},
		{
			name:    "other tenant",
			mutate:  func(r *ledger.WriteRequest) { r.TenantID = "t2" },
			wantErr: ledger.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := adjustment(1)
			tt.mutate(req)

			_, err := w.Write(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, ledger.ErrWriteFailure)
			assert.True(t, ledger.IsCallerError(err))
		})
	}
	assert.Empty(t, repo.Entries())
}

func TestWrite_StorageFailureRollsBack(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{})
	repo.FailNext("InsertEntry", errors.New("disk full"))

	_, err := w.Write(context.Background(), adjustment(-3))
	assert.ErrorIs(t, err, ledger.ErrWriteFailure)

	rec, _ := repo.GetStockRecord(context.Background(), "p1")
	assert.Equal(t, int64(10), rec.OnHand, "stock record must not move without its entry")
	assert.Empty(t, repo.Entries())
}

func TestWrite_RetriesConflicts(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{MaxRetries: 3})
	repo.FailNext("UpdateStockRecord", ledger.ErrConflict)
	repo.FailNext("UpdateStockRecord", ledger.ErrConflict)

	entry, err := w.Write(context.Background(), adjustment(-3))
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.OnHandAfter)
	assert.Len(t, repo.Entries(), 1)
}

func TestWrite_ConflictRetriesExhausted(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{MaxRetries: 1})
	repo.FailNext("UpdateStockRecord", ledger.ErrConflict)
	repo.FailNext("UpdateStockRecord", ledger.ErrConflict)

	_, err := w.Write(context.Background(), adjustment(-3))
	assert.ErrorIs(t, err, ledger.ErrWriteFailure)
	assert.ErrorIs(t, err, ledger.ErrConflict)
	assert.Empty(t, repo.Entries())
}

func TestWrite_ConcurrentMutationsSerialise(t *testing.T) {
	w, repo := newWriter(t, ledger.Config{})

	var wg sync.WaitGroup
	for _, delta := range []int64{-3, 2, -1, 4, -2} {
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := w.Write(context.Background(), adjustment(d))
			assert.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	rec, _ := repo.GetStockRecord(context.Background(), "p1")
	assert.Equal(t, int64(10), rec.OnHand)

	// Entries chain: each before equals the previous after.
	entries := repo.Entries()
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].OnHandAfter, entries[i].OnHandBefore)
	}
}
