package threshold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Level string

const (
	LevelOK         Level = "ok"
	LevelLow        Level = "low"
	LevelCritical   Level = "critical"
	LevelOutOfStock Level = "out_of_stock"
	LevelOverstock  Level = "overstock"
)

// Classify places a stock record on the alert ladder. Available stock drives
// the shortage levels, on_hand drives overstock.
func Classify(rec *model.StockRecord) Level {
	available := rec.Available()
	switch {
	case available <= 0:
		return LevelOutOfStock
	case rec.CriticalThreshold > 0 && available <= rec.CriticalThreshold:
		return LevelCritical
	case rec.LowThreshold > 0 && available <= rec.LowThreshold:
		return LevelLow
	case rec.MaxThreshold > 0 && rec.OnHand > rec.MaxThreshold:
		return LevelOverstock
	}
	return LevelOK
}

// AlertState remembers the last level alerted per product so an alert fires
// once per change rather than on every mutation.
type AlertState interface {
	LastLevel(ctx context.Context, productID string) (Level, error)
	SetLevel(ctx context.Context, productID string, level Level) error
}

type Evaluator struct {
	repo     ledger.Repository
	state    AlertState
	notifier outbound.NotificationDispatcher
	logger   logger.ZapLogger
	now      func() time.Time
}

func NewEvaluator(repo ledger.Repository, state AlertState, notifier outbound.NotificationDispatcher, log logger.ZapLogger) *Evaluator {
	return &Evaluator{
		repo:     repo,
		state:    state,
		notifier: notifier,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ outbound.ThresholdEvaluator = (*Evaluator)(nil)

func (e *Evaluator) Evaluate(ctx context.Context, productID string) error {
	rec, err := e.repo.GetStockRecord(ctx, productID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ledger.ErrProductNotFound, productID)
	}

	if err := e.repo.TouchLastChecked(ctx, productID, e.now()); err != nil {
		e.logger.Warn("failed to record threshold check", zap.String("product_id", productID), zap.Error(err))
	}
	if !rec.AlertsEnabled {
		return nil
	}

	level := Classify(rec)
	last, err := e.state.LastLevel(ctx, productID)
	if err != nil {
		return err
	}
	if level == last {
		return nil
	}
	if level == LevelOK {
		return e.state.SetLevel(ctx, productID, level)
	}

	e.logger.Info("stock alert raised",
		zap.String("product_id", rec.ProductID),
		zap.String("sku", rec.SKU),
		zap.String("level", string(level)),
		zap.Int64("available", rec.Available()),
	)

	// The level is stored only once the alert is out, so a retried task sends it again.
	err = e.notifier.Notify(ctx, rec.TenantID, &model.Notification{
		Type:      model.NotificationStockAlert,
		Title:     alertTitle(level),
		Message:   fmt.Sprintf("%s: %d available (low %d, critical %d)", rec.SKU, rec.Available(), rec.LowThreshold, rec.CriticalThreshold),
		Audience:  model.AudienceInventoryManagers,
		ProductID: rec.ProductID,
		Data: map[string]any{
			"level":     level,
			"on_hand":   rec.OnHand,
			"allocated": rec.Allocated,
			"inbound":   rec.Inbound,
			"available": rec.Available(),
		},
		CreatedAt: e.now(),
	})
	if err != nil {
		return err
	}
	return e.state.SetLevel(ctx, productID, level)
}

func alertTitle(level Level) string {
	switch level {
	case LevelOutOfStock:
		return "Out of stock"
	case LevelCritical:
		return "Critical stock level"
	case LevelLow:
		return "Low stock"
	case LevelOverstock:
		return "Overstock"
	}
	return "Stock level"
}

type RedisAlertState struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAlertState(client *redis.Client, ttl time.Duration) *RedisAlertState {
	return &RedisAlertState{client: client, ttl: ttl}
}

func alertKey(productID string) string {
	return "inventory:alert-level:" + productID
}

func (s *RedisAlertState) LastLevel(ctx context.Context, productID string) (Level, error) {
	val, err := s.client.Get(ctx, alertKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return LevelOK, nil
	}
	if err != nil {
		return "", err
	}
	return Level(val), nil
}

func (s *RedisAlertState) SetLevel(ctx context.Context, productID string, level Level) error {
	return s.client.Set(ctx, alertKey(productID), string(level), s.ttl).Err()
}
