package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fekuna/omnipos-inventory-ledger/internal/metrics"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	// MaxRetries bounds how many times a conflicting transaction is re-run.
	MaxRetries int
	// When EnforceNegativeFloor is set, writes that would leave on_hand
	// below -NegativeFloor are rejected. Otherwise negative stock is only
	// logged.
	EnforceNegativeFloor bool
	NegativeFloor        int64
	// RetryInitialInterval is the first backoff step between conflict retries.
	RetryInitialInterval time.Duration
}

type WriteRequest struct {
	ProductID string
	// TenantID, when set, must match the stock record's tenant.
	TenantID        string
	Delta           model.Delta
	Type            model.TransactionType
	Status          model.EntryStatus
	Source          model.Source
	SourceLineID    string
	ReferenceNumber string
	Reason          string
	Notes           string
	Actor           string
	// FloorOnHand clamps a negative on_hand delta so the result does not
	// drop below zero. Inbound is always clamped.
	FloorOnHand bool
}

// Writer is the only code path that mutates stock records. Every mutation
// locks the record, computes after-values from the locked before-values, and
// writes the record and its ledger entry in one transaction.
type Writer struct {
	repo   Repository
	cfg    Config
	logger logger.ZapLogger
	now    func() time.Time
}

func NewWriter(repo Repository, cfg Config, log logger.ZapLogger) *Writer {
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 20 * time.Millisecond
	}
	return &Writer{
		repo:   repo,
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Write applies one mutation in its own transaction.
func (w *Writer) Write(ctx context.Context, req *WriteRequest) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := w.InTx(ctx, func(ctx context.Context, tx Tx) error {
		e, _, err := w.Apply(ctx, tx, req)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// InTx runs fn in a transaction, re-running it on ErrConflict with bounded
// exponential backoff. Storage errors come back wrapped in ErrWriteFailure;
// caller errors come back untouched.
func (w *Writer) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.LedgerWriteRetries.Inc()
		}
		err := w.repo.RunInTx(ctx, fn)
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.cfg.RetryInitialInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(w.cfg.MaxRetries, 0))), ctx)

	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if IsCallerError(err) || errors.Is(err, ErrWriteFailure) {
		return err
	}
	metrics.LedgerWriteFailures.Inc()
	w.logger.Error("ledger transaction failed", zap.Int("attempts", attempt), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrWriteFailure, err)
}

// Apply performs one mutation inside an existing transaction and returns the
// entry together with the updated stock record.
func (w *Writer) Apply(ctx context.Context, tx Tx, req *WriteRequest) (*model.LedgerEntry, *model.StockRecord, error) {
	rec, err := tx.LockStockRecord(ctx, req.ProductID)
	if err != nil {
		return nil, nil, storageErr("lock stock record", err)
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, req.ProductID)
	}
	if req.TenantID != "" && rec.TenantID != req.TenantID {
		return nil, nil, fmt.Errorf("%w: %s", ErrForbidden, req.ProductID)
	}

	onHandDelta := req.Delta.OnHand
	if req.FloorOnHand {
		onHandDelta = floorDecrease(rec.OnHand, onHandDelta)
	}
	inboundDelta := floorDecrease(rec.Inbound, req.Delta.Inbound)
	onHandAfter := rec.OnHand + onHandDelta

	if onHandAfter < 0 && onHandDelta < 0 {
		if w.cfg.EnforceNegativeFloor && onHandAfter < -w.cfg.NegativeFloor {
			return nil, nil, fmt.Errorf("%w: %s would reach %d", ErrNegativeStock, req.ProductID, onHandAfter)
		}
		metrics.NegativeStock.Inc()
		w.logger.Warn("on_hand below zero after write",
			zap.String("product_id", rec.ProductID),
			zap.String("sku", rec.SKU),
			zap.Int64("on_hand_before", rec.OnHand),
			zap.Int64("on_hand_after", onHandAfter),
			zap.String("transaction_type", string(req.Type)),
		)
	}

	status := req.Status
	if status == "" {
		status = model.EntryCompleted
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	var lineID *string
	if req.SourceLineID != "" {
		lineID = &req.SourceLineID
	}
	var createdBy *string
	if req.Actor != "" && req.Actor != "unknown" {
		createdBy = &req.Actor
	}

	now := w.now()
	entry := &model.LedgerEntry{
		ID:              uuid.New().String(),
		TenantID:        rec.TenantID,
		ProductID:       rec.ProductID,
		SKU:             rec.SKU,
		TransactionType: req.Type,
		OccurredAt:      now,
		SourceType:      req.Source.Type,
		SourceID:        req.Source.ID,
		SourceLineID:    lineID,
		ReferenceNumber: req.ReferenceNumber,
		Reason:          reason,
		QuantityChange:  onHandDelta,
		InboundChange:   inboundDelta,
		OnHandBefore:    rec.OnHand,
		OnHandAfter:     onHandAfter,
		AllocatedBefore: rec.Allocated,
		AllocatedAfter:  rec.Allocated,
		InboundBefore:   rec.Inbound,
		InboundAfter:    rec.Inbound + inboundDelta,
		Status:          status,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
		CreatedAt:       now,
	}

	rec.OnHand = entry.OnHandAfter
	rec.Inbound = entry.InboundAfter
	rec.UpdatedAt = now

	if err := tx.UpdateStockRecord(ctx, rec); err != nil {
		return nil, nil, storageErr("update stock record", err)
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, nil, storageErr("insert ledger entry", err)
	}

	metrics.LedgerWrites.WithLabelValues(string(req.Type)).Inc()
	return entry, rec, nil
}

// floorDecrease clamps a negative delta so before+delta does not cross zero.
// A counter already at or below zero is left where it is.
func floorDecrease(before, delta int64) int64 {
	if delta >= 0 || before+delta >= 0 {
		return delta
	}
	if before <= 0 {
		return 0
	}
	return -before
}

func storageErr(op string, err error) error {
	if errors.Is(err, ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrWriteFailure, op, err)
}
