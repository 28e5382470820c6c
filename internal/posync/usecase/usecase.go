package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	ledgerdto "github.com/fekuna/omnipos-inventory-ledger/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/metrics"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync/dto"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockTTL      = 30 * time.Second
	lockAttempts = 3
	lockBackoff  = 100 * time.Millisecond
)

type poSyncUseCase struct {
	writer  *ledger.Writer
	locker  posync.Locker
	effects *outbound.Effects
	logger  logger.ZapLogger
}

// NewPOSyncUseCase wires the sync service. locker may be nil, in which case
// only the database row lock on the purchase order serialises runs.
func NewPOSyncUseCase(writer *ledger.Writer, locker posync.Locker, effects *outbound.Effects, log logger.ZapLogger) posync.UseCase {
	return &poSyncUseCase{
		writer:  writer,
		locker:  locker,
		effects: effects,
		logger:  log,
	}
}

// plan looks at a line's ledger history inside the line's transaction and
// returns the write to apply, or nil and the reason the line is skipped.
type plan func(po *model.PurchaseOrder, history []model.LedgerEntry) (*ledger.WriteRequest, string)

func (uc *poSyncUseCase) SyncApproval(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error) {
	return uc.withLock(ctx, poID, func() (*dto.SyncResult, error) {
		po, err := uc.load(ctx, poID, actor)
		if err != nil {
			return nil, err
		}
		if po.Status != model.POStatusApproved && po.Status != model.POStatusOrdered {
			return nil, invalidState(po)
		}
		if po.FulfillmentState == model.FulfillmentCancelled {
			return nil, invalidState(po)
		}

		result := newResult(po, dto.OperationApproval)
		for i := range po.Lines {
			line := &po.Lines[i]
			qty := line.Quantity()
			lr, _ := uc.syncLine(ctx, dto.OperationApproval, po, line, func(current *model.PurchaseOrder, history []model.LedgerEntry) (*ledger.WriteRequest, string) {
				if hasEntry(history, model.TransactionPOApproved) {
					return nil, "inbound already recorded"
				}
				return &ledger.WriteRequest{
					ProductID:       *line.ProductID,
					TenantID:        current.TenantID,
					Delta:           model.Delta{Inbound: qty},
					Type:            model.TransactionPOApproved,
					Status:          model.EntryPending,
					Source:          model.Source{Type: model.SourcePurchaseOrder, ID: current.ID},
					SourceLineID:    line.ID,
					ReferenceNumber: current.PONumber,
					Notes:           fmt.Sprintf("PO %s approved, %d units inbound", current.PONumber, qty),
					Actor:           actor.UserID,
				}, ""
			}, nil, model.FulfillmentApprovedUnfulfilled)
			result.Add(lr)
		}

		if result.Applied > 0 {
			result.FulfillmentState = model.FulfillmentApprovedUnfulfilled
			uc.evaluateApplied(result)
			if po.ExpectedDeliveryDate != nil {
				uc.effects.ScheduleArrival(arrivalEntity(po), *po.ExpectedDeliveryDate)
			}
		}

		uc.logResult(result)
		return result, nil
	})
}

func (uc *poSyncUseCase) SyncReceipt(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error) {
	return uc.withLock(ctx, poID, func() (*dto.SyncResult, error) {
		po, err := uc.load(ctx, poID, actor)
		if err != nil {
			return nil, err
		}
		if po.Status != model.POStatusReceived || po.FulfillmentState == model.FulfillmentCancelled {
			return nil, invalidState(po)
		}

		var confirmed int64
		err = uc.writer.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			n, err := tx.UpdateEntryStatus(ctx, &ledgerdto.StatusUpdate{
				SourceType:      string(model.SourcePurchaseOrder),
				SourceID:        po.ID,
				TransactionType: string(model.TransactionPOApproved),
				From:            string(model.EntryPending),
				To:              string(model.EntryCompleted),
			})
			confirmed = n
			return err
		})
		if err != nil {
			return nil, err
		}
		uc.logger.Debug("approval entries confirmed", zap.String("po_id", po.ID), zap.Int64("count", confirmed))

		result := newResult(po, dto.OperationReceipt)
		for i := range po.Lines {
			line := &po.Lines[i]
			qty := line.Quantity()
			lr, rec := uc.syncLine(ctx, dto.OperationReceipt, po, line, func(current *model.PurchaseOrder, history []model.LedgerEntry) (*ledger.WriteRequest, string) {
				if hasEntry(history, model.TransactionPOReceived) {
					return nil, "receipt already recorded"
				}
				return &ledger.WriteRequest{
					ProductID:       *line.ProductID,
					TenantID:        current.TenantID,
					Delta:           model.Delta{OnHand: qty, Inbound: -qty},
					Type:            model.TransactionPOReceived,
					Status:          model.EntryCompleted,
					Source:          model.Source{Type: model.SourcePurchaseOrder, ID: current.ID},
					SourceLineID:    line.ID,
					ReferenceNumber: current.PONumber,
					Notes:           fmt.Sprintf("PO %s received, %d units", current.PONumber, qty),
					Actor:           actor.UserID,
				}, ""
			}, nil, model.FulfillmentFulfilled)
			result.Add(lr)

			if lr.Outcome == dto.LineApplied && replenished(lr.Entry, rec) {
				uc.effects.Notify(po.TenantID, &model.Notification{
					Type:            model.NotificationStockReplenished,
					Title:           "Stock replenished",
					Message:         fmt.Sprintf("%s is back above its low threshold (%d on hand)", rec.SKU, lr.Entry.OnHandAfter),
					ProductID:       rec.ProductID,
					ReferenceNumber: po.PONumber,
					Data: map[string]any{
						"on_hand_before": lr.Entry.OnHandBefore,
						"on_hand_after":  lr.Entry.OnHandAfter,
						"low_threshold":  rec.LowThreshold,
					},
				})
			}
		}

		if result.Applied > 0 {
			result.FulfillmentState = model.FulfillmentFulfilled
			uc.evaluateApplied(result)
			uc.effects.CompleteArrival(arrivalEntity(po))
		}

		uc.logResult(result)
		return result, nil
	})
}

func (uc *poSyncUseCase) SyncCancellation(ctx context.Context, poID string, actor model.Actor, reason string) (*dto.SyncResult, error) {
	return uc.withLock(ctx, poID, func() (*dto.SyncResult, error) {
		po, err := uc.load(ctx, poID, actor)
		if err != nil {
			return nil, err
		}
		if po.Status != model.POStatusCancelled {
			return nil, invalidState(po)
		}

		result := newResult(po, dto.OperationCancellation)
		if po.FulfillmentState == model.FulfillmentCancelled {
			for _, line := range po.Lines {
				result.Add(dto.LineResult{LineID: line.ID, SKU: line.SKU, Quantity: line.Quantity(), Outcome: dto.LineSkipped, Detail: "purchase order already cancelled"})
			}
			return result, nil
		}

		for i := range po.Lines {
			line := &po.Lines[i]
			qty := line.Quantity()
			lr, _ := uc.syncLine(ctx, dto.OperationCancellation, po, line, func(current *model.PurchaseOrder, history []model.LedgerEntry) (*ledger.WriteRequest, string) {
				if hasEntry(history, model.TransactionPOCancelled) {
					return nil, "already reversed"
				}

				req := &ledger.WriteRequest{
					ProductID:       *line.ProductID,
					TenantID:        current.TenantID,
					Type:            model.TransactionPOCancelled,
					Status:          model.EntryCompleted,
					Source:          model.Source{Type: model.SourcePurchaseOrder, ID: current.ID},
					SourceLineID:    line.ID,
					ReferenceNumber: current.PONumber,
					Reason:          reason,
					Actor:           actor.UserID,
				}
				switch {
				case hasEntry(history, model.TransactionPOReceived):
					// Goods were received: take them back out of on_hand.
					req.Delta = model.Delta{OnHand: -qty}
					req.FloorOnHand = true
					req.Notes = fmt.Sprintf("PO %s cancelled after receipt, %d units removed", current.PONumber, qty)
				case hasEntry(history, model.TransactionPOApproved):
					req.Delta = model.Delta{Inbound: -qty}
					req.Notes = fmt.Sprintf("PO %s cancelled before receipt, %d inbound units released", current.PONumber, qty)
				default:
					return nil, "no stock effect to reverse"
				}
				return req, ""
			}, func(ctx context.Context, tx ledger.Tx) error {
				_, err := tx.UpdateEntryStatus(ctx, lineStatusUpdate(po.ID, line, model.EntryPending, model.EntryCancelled))
				return err
			}, "")
			result.Add(lr)
		}

		if result.Failed > 0 {
			// Leave the order open so a re-run retries the failed lines.
			uc.evaluateApplied(result)
			uc.effects.CancelArrival(arrivalEntity(po))
			if result.Applied > 0 {
				uc.notifyCancelled(po, reason, result)
			}
			uc.logResult(result)
			return result, nil
		}

		err = uc.writer.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			if _, err := tx.UpdateEntryStatus(ctx, &ledgerdto.StatusUpdate{
				SourceType: string(model.SourcePurchaseOrder),
				SourceID:   po.ID,
				From:       string(model.EntryPending),
				To:         string(model.EntryCancelled),
			}); err != nil {
				return err
			}
			return tx.SetFulfillmentState(ctx, po.ID, model.FulfillmentCancelled)
		})
		if err != nil {
			uc.logger.Error("failed to close cancelled purchase order", zap.String("po_id", po.ID), zap.Error(err))
			return nil, err
		}
		result.FulfillmentState = model.FulfillmentCancelled

		uc.evaluateApplied(result)
		uc.effects.CancelArrival(arrivalEntity(po))
		uc.notifyCancelled(po, reason, result)

		uc.logResult(result)
		return result, nil
	})
}

func (uc *poSyncUseCase) notifyCancelled(po *model.PurchaseOrder, reason string, result *dto.SyncResult) {
	msg := fmt.Sprintf("Purchase order %s was cancelled, %d line(s) reversed", po.PONumber, result.Applied)
	if result.Failed > 0 {
		msg += fmt.Sprintf(", %d line(s) pending retry", result.Failed)
	}
	uc.effects.Notify(po.TenantID, &model.Notification{
		Type:            model.NotificationPOCancelled,
		Title:           "PO cancelled - inventory updated",
		Message:         msg,
		ReferenceNumber: po.PONumber,
		Data: map[string]any{
			"purchase_order_id": po.ID,
			"reason":            reason,
			"reversed_lines":    result.Applied,
			"failed_lines":      result.Failed,
		},
	})
}

// syncLine applies one purchase order line in its own transaction. The order
// row is re-read (and locked) inside the transaction so the history the plan
// sees cannot go stale before the write lands.
func (uc *poSyncUseCase) syncLine(
	ctx context.Context,
	op dto.Operation,
	po *model.PurchaseOrder,
	line *model.PurchaseOrderLine,
	p plan,
	after func(ctx context.Context, tx ledger.Tx) error,
	next model.FulfillmentState,
) (dto.LineResult, *model.StockRecord) {
	lr := dto.LineResult{LineID: line.ID, SKU: line.SKU, Quantity: line.Quantity()}

	if !line.Resolved() {
		lr.Outcome, lr.Detail = dto.LineSkipped, "product not resolved"
		metrics.POSyncLines.WithLabelValues(string(op), string(lr.Outcome)).Inc()
		return lr, nil
	}
	lr.ProductID = *line.ProductID
	if lr.Quantity <= 0 {
		lr.Outcome, lr.Detail = dto.LineSkipped, "zero quantity"
		metrics.POSyncLines.WithLabelValues(string(op), string(lr.Outcome)).Inc()
		return lr, nil
	}

	var stock *model.StockRecord
	err := uc.writer.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		lr.Outcome, lr.Detail, lr.Entry, stock = "", "", nil, nil

		current, err := tx.GetPurchaseOrder(ctx, po.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ledger.ErrPurchaseOrderNotFound
		}

		entries, err := tx.ListSourceEntries(ctx, model.SourcePurchaseOrder, po.ID, lr.ProductID)
		if err != nil {
			return err
		}

		req, skip := p(current, lineHistory(entries, line))
		if req == nil {
			lr.Outcome, lr.Detail = dto.LineSkipped, skip
			return nil
		}

		entry, rec, err := uc.writer.Apply(ctx, tx, req)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, tx); err != nil {
				return err
			}
		}
		if next != "" && current.FulfillmentState != next {
			if err := tx.SetFulfillmentState(ctx, po.ID, next); err != nil {
				return err
			}
		}

		lr.Outcome, lr.Entry, stock = dto.LineApplied, entry, rec
		return nil
	})
	if err != nil {
		uc.logger.Error("purchase order line sync failed",
			zap.String("operation", string(op)),
			zap.String("po_id", po.ID),
			zap.String("line_id", line.ID),
			zap.String("product_id", lr.ProductID),
			zap.Error(err),
		)
		lr.Outcome, lr.Detail, lr.Entry, stock = dto.LineFailed, err.Error(), nil, nil
	}

	metrics.POSyncLines.WithLabelValues(string(op), string(lr.Outcome)).Inc()
	return lr, stock
}

func (uc *poSyncUseCase) load(ctx context.Context, poID string, actor model.Actor) (*model.PurchaseOrder, error) {
	var po *model.PurchaseOrder
	err := uc.writer.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.GetPurchaseOrder(ctx, poID)
		po = p
		return err
	})
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPurchaseOrderNotFound, poID)
	}
	if actor.TenantID == "" || po.TenantID != actor.TenantID {
		return nil, fmt.Errorf("%w: purchase order %s", ledger.ErrForbidden, poID)
	}
	if len(po.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase order %s", ledger.ErrNoLineItems, po.PONumber)
	}
	return po, nil
}

func (uc *poSyncUseCase) withLock(ctx context.Context, poID string, fn func() (*dto.SyncResult, error)) (*dto.SyncResult, error) {
	if uc.locker == nil {
		return fn()
	}

	key := "lock:po-sync:" + poID
	value := uuid.New().String()

	acquired := false
	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, value, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire po sync lock", zap.String("po_id", poID), zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	if !acquired {
		return nil, fmt.Errorf("%w: purchase order %s", ledger.ErrBusy, poID)
	}

	defer func() {
		if err := uc.locker.ReleaseLock(context.Background(), key, value); err != nil {
			uc.logger.Error("failed to release po sync lock", zap.String("po_id", poID), zap.Error(err))
		}
	}()

	return fn()
}

func (uc *poSyncUseCase) evaluateApplied(result *dto.SyncResult) {
	for _, l := range result.Lines {
		if l.Outcome == dto.LineApplied {
			uc.effects.EvaluateAsync(l.ProductID)
		}
	}
}

func (uc *poSyncUseCase) logResult(result *dto.SyncResult) {
	uc.logger.Info("purchase order synced",
		zap.String("operation", string(result.Operation)),
		zap.String("po_id", result.PurchaseOrderID),
		zap.String("po_number", result.PONumber),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
}

func newResult(po *model.PurchaseOrder, op dto.Operation) *dto.SyncResult {
	return &dto.SyncResult{
		PurchaseOrderID:  po.ID,
		PONumber:         po.PONumber,
		Operation:        op,
		FulfillmentState: po.FulfillmentState,
		Lines:            make([]dto.LineResult, 0, len(po.Lines)),
	}
}

func invalidState(po *model.PurchaseOrder) error {
	return fmt.Errorf("%w: %s is %s (fulfillment %s)", ledger.ErrInvalidPurchaseOrderState, po.PONumber, po.Status, po.FulfillmentState)
}

// lineHistory narrows a product's entries for this order to the given line.
// Lines without an id fall back to every entry for the product.
func lineHistory(entries []model.LedgerEntry, line *model.PurchaseOrderLine) []model.LedgerEntry {
	if line.ID == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.SourceLineID != nil && *e.SourceLineID == line.ID {
			out = append(out, e)
		}
	}
	return out
}

func hasEntry(history []model.LedgerEntry, t model.TransactionType) bool {
	for _, e := range history {
		if e.TransactionType == t && e.Status != model.EntryCancelled {
			return true
		}
	}
	return false
}

func lineStatusUpdate(poID string, line *model.PurchaseOrderLine, from, to model.EntryStatus) *ledgerdto.StatusUpdate {
	u := &ledgerdto.StatusUpdate{
		SourceType: string(model.SourcePurchaseOrder),
		SourceID:   poID,
		From:       string(from),
		To:         string(to),
	}
	if line.ID != "" {
		u.SourceLineID = line.ID
	} else {
		u.ProductID = *line.ProductID
	}
	return u
}

func replenished(entry *model.LedgerEntry, rec *model.StockRecord) bool {
	if entry == nil || rec == nil || !rec.AlertsEnabled {
		return false
	}
	return entry.OnHandBefore <= rec.LowThreshold && entry.OnHandAfter > rec.LowThreshold
}

func arrivalEntity(po *model.PurchaseOrder) outbound.CalendarEntity {
	return outbound.CalendarEntity{
		Kind:     outbound.CalendarKindPOArrival,
		EntityID: po.ID,
		TenantID: po.TenantID,
		Title:    fmt.Sprintf("Expected arrival: PO %s", po.PONumber),
	}
}
