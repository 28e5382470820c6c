package threshold

import (
	"context"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger/repository"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound/outboundtest"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryState struct {
	mu     sync.Mutex
	levels map[string]Level
}

func newMemoryState() *memoryState {
	return &memoryState{levels: map[string]Level{}}
}

func (s *memoryState) LastLevel(ctx context.Context, productID string) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.levels[productID]; ok {
		return l, nil
	}
	return LevelOK, nil
}

func (s *memoryState) SetLevel(ctx context.Context, productID string, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[productID] = level
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rec  model.StockRecord
		want Level
	}{
		{"nothing available", model.StockRecord{OnHand: 4, Allocated: 4, LowThreshold: 10}, LevelOutOfStock},
		{"negative on hand", model.StockRecord{OnHand: -2}, LevelOutOfStock},
		{"critical", model.StockRecord{OnHand: 3, LowThreshold: 10, CriticalThreshold: 3}, LevelCritical},
		{"low", model.StockRecord{OnHand: 12, Allocated: 2, LowThreshold: 10, CriticalThreshold: 3}, LevelLow},
		{"healthy", model.StockRecord{OnHand: 50, LowThreshold: 10}, LevelOK},
		{"over ceiling", model.StockRecord{OnHand: 120, LowThreshold: 10, MaxThreshold: 100}, LevelOverstock},
		{"no ceiling", model.StockRecord{OnHand: 120, LowThreshold: 10}, LevelOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&tt.rec))
		})
	}
}

func newEvaluator(t *testing.T, rec model.StockRecord) (*Evaluator, *repository.MemoryRepository, *outboundtest.Notifier) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(rec)
	notifier := &outboundtest.Notifier{}
	return NewEvaluator(repo, newMemoryState(), notifier, logger.NewNop()), repo, notifier
}

func TestEvaluate_AlertsOncePerLevelChange(t *testing.T) {
	e, repo, notifier := newEvaluator(t, model.StockRecord{
		ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 8, LowThreshold: 10, CriticalThreshold: 2, AlertsEnabled: true,
	})
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, "p1"))
	require.NoError(t, e.Evaluate(ctx, "p1"))

	sent := notifier.OfType(model.NotificationStockAlert)
	require.Len(t, sent, 1)
	assert.Equal(t, "t1", sent[0].TenantID)
	assert.Equal(t, LevelLow, sent[0].Notification.Data["level"])

	rec, _ := repo.GetStockRecord(ctx, "p1")
	require.NotNil(t, rec.LastCheckedAt)

	// Dropping to critical raises a new alert.
	rec.OnHand = 1
	repo.PutStockRecord(*rec)
	require.NoError(t, e.Evaluate(ctx, "p1"))
	assert.Len(t, notifier.OfType(model.NotificationStockAlert), 2)

	// Recovering clears the level silently, and a later dip alerts again.
	rec.OnHand = 40
	repo.PutStockRecord(*rec)
	require.NoError(t, e.Evaluate(ctx, "p1"))
	assert.Len(t, notifier.Sent(), 2)

	rec.OnHand = 9
	repo.PutStockRecord(*rec)
	require.NoError(t, e.Evaluate(ctx, "p1"))
	assert.Len(t, notifier.Sent(), 3)
}

func TestEvaluate_AlertsDisabled(t *testing.T) {
	e, _, notifier := newEvaluator(t, model.StockRecord{ProductID: "p1", TenantID: "t1", OnHand: 0, LowThreshold: 10})

	require.NoError(t, e.Evaluate(context.Background(), "p1"))
	assert.Empty(t, notifier.Sent())
}

func TestEvaluate_UnknownProduct(t *testing.T) {
	e, _, _ := newEvaluator(t, model.StockRecord{ProductID: "p1", TenantID: "t1"})

	err := e.Evaluate(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)
}

func TestEvaluate_FailedSendKeepsLevelUnset(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(model.StockRecord{
		ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 2, LowThreshold: 10, AlertsEnabled: true,
	})
	state := newMemoryState()
	notifier := &outboundtest.Notifier{FailNext: 1}
	e := NewEvaluator(repo, state, notifier, logger.NewNop())
	ctx := context.Background()

	err := e.Evaluate(ctx, "p1")
	assert.ErrorIs(t, err, outboundtest.ErrUnavailable)
	last, _ := state.LastLevel(ctx, "p1")
	assert.Equal(t, LevelOK, last)

	require.NoError(t, e.Evaluate(ctx, "p1"))
	require.Len(t, notifier.OfType(model.NotificationStockAlert), 1)
	last, _ = state.LastLevel(ctx, "p1")
	assert.Equal(t, LevelLow, last)
}

func TestEvaluateAsync_RetriedAlertIsDelivered(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.PutStockRecord(model.StockRecord{
		ProductID: "p1", TenantID: "t1", SKU: "SKU-1", OnHand: 2, LowThreshold: 10, AlertsEnabled: true,
	})
	notifier := &outboundtest.Notifier{FailNext: 1}
	e := NewEvaluator(repo, newMemoryState(), notifier, logger.NewNop())

	q := outbound.NewQueue(outbound.Config{MaxAttempts: 3}, logger.NewNop())
	effects := outbound.NewEffects(q, e, notifier, nil)

	effects.EvaluateAsync("p1")

	assert.Equal(t, 2, notifier.Attempts())
	sent := notifier.OfType(model.NotificationStockAlert)
	require.Len(t, sent, 1)
	assert.Equal(t, LevelLow, sent[0].Notification.Data["level"])
}
