package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment"
	"github.com/fekuna/omnipos-inventory-ledger/internal/adjustment/dto"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/metrics"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type adjustmentUseCase struct {
	writer  *ledger.Writer
	effects *outbound.Effects
	logger  logger.ZapLogger
}

func NewAdjustmentUseCase(writer *ledger.Writer, effects *outbound.Effects, log logger.ZapLogger) adjustment.UseCase {
	return &adjustmentUseCase{
		writer:  writer,
		effects: effects,
		logger:  log,
	}
}

func (uc *adjustmentUseCase) AdjustOne(ctx context.Context, input *dto.AdjustOneInput) (*model.LedgerEntry, error) {
	if !input.Reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidReason, input.Reason)
	}
	if input.TenantID == "" {
		return nil, ledger.ErrForbidden
	}

	ref := input.ReferenceNumber
	if ref == "" {
		ref = referenceNumber("ADJ")
	}

	txType := model.TransactionManualAdjustment
	if input.Reason == dto.ReasonStocktake {
		txType = model.TransactionStocktakeAdjustment
	}

	entry, err := uc.writer.Write(ctx, &ledger.WriteRequest{
		ProductID:       input.ProductID,
		TenantID:        input.TenantID,
		Delta:           model.Delta{OnHand: input.DeltaOnHand},
		Type:            txType,
		Status:          model.EntryCompleted,
		Source:          model.Source{Type: model.SourceAdjustment, ID: uuid.New().String()},
		ReferenceNumber: ref,
		Reason:          string(input.Reason),
		Notes:           input.Notes,
		Actor:           input.UserID,
	})
	if err != nil {
		uc.logger.Warn("stock adjustment rejected",
			zap.String("product_id", input.ProductID),
			zap.String("reason", string(input.Reason)),
			zap.Error(err),
		)
		return nil, err
	}

	uc.effects.Evaluate(ctx, entry.ProductID)
	uc.effects.Notify(entry.TenantID, &model.Notification{
		Type:            model.NotificationStockAdjusted,
		Title:           "Stock adjusted",
		Message:         fmt.Sprintf("%s adjusted by %+d (%s), on hand now %d", entry.SKU, entry.QuantityChange, input.Reason, entry.OnHandAfter),
		ProductID:       entry.ProductID,
		ReferenceNumber: ref,
		Data: map[string]any{
			"on_hand_before": entry.OnHandBefore,
			"on_hand_after":  entry.OnHandAfter,
			"reason":         input.Reason,
		},
	})

	return entry, nil
}

// AdjustBulk applies every item independently. One item failing never stops
// the rest; the batch itself only fails on its own preconditions.
func (uc *adjustmentUseCase) AdjustBulk(ctx context.Context, input *dto.AdjustBulkInput) (*dto.BulkResult, error) {
	if !input.Reason.ValidForBulk() {
		return nil, fmt.Errorf("%w: %q is not allowed for bulk adjustments", ledger.ErrInvalidReason, input.Reason)
	}
	if input.TenantID == "" {
		return nil, ledger.ErrForbidden
	}
	if len(input.Items) == 0 {
		return nil, ledger.ErrNoLineItems
	}

	ref := input.ReferenceNumber
	if ref == "" {
		prefix := "COR"
		if input.Reason == dto.ReasonStocktake {
			prefix = "STK"
		}
		ref = referenceNumber(prefix)
	}

	txType := model.TransactionManualAdjustment
	if input.Reason == dto.ReasonStocktake {
		txType = model.TransactionStocktakeAdjustment
	}
	batch := model.Source{Type: model.SourceAdjustment, ID: uuid.New().String()}

	result := &dto.BulkResult{
		ReferenceNumber: ref,
		Total:           len(input.Items),
		Results:         make([]dto.ItemResult, 0, len(input.Items)),
	}
	summaryTenant := ""

	for _, item := range input.Items {
		entry, err := uc.writer.Write(ctx, &ledger.WriteRequest{
			ProductID:       item.ProductID,
			TenantID:        input.TenantID,
			Delta:           model.Delta{OnHand: item.DeltaOnHand},
			Type:            txType,
			Status:          model.EntryCompleted,
			Source:          batch,
			ReferenceNumber: ref,
			Reason:          string(input.Reason),
			Notes:           item.Notes,
			Actor:           input.UserID,
		})
		if err != nil {
			uc.logger.Warn("bulk adjustment item failed",
				zap.String("reference_number", ref),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			metrics.BulkItems.WithLabelValues("failed").Inc()
			result.Failed++
			result.Results = append(result.Results, dto.ItemResult{
				ProductID: item.ProductID,
				Error:     err.Error(),
				Err:       err,
			})
			continue
		}

		metrics.BulkItems.WithLabelValues("succeeded").Inc()
		result.Successful++
		result.Results = append(result.Results, dto.ItemResult{
			ProductID: item.ProductID,
			Success:   true,
			Entry:     entry,
		})
		if summaryTenant == "" {
			summaryTenant = entry.TenantID
		}
		uc.effects.EvaluateAsync(entry.ProductID)
	}

	uc.logger.Info("bulk adjustment processed",
		zap.String("reference_number", ref),
		zap.String("reason", string(input.Reason)),
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
	)

	if result.Successful > 0 {
		uc.effects.Notify(summaryTenant, &model.Notification{
			Type:            model.NotificationBulkAdjusted,
			Title:           "Bulk stock adjustment completed",
			Message:         fmt.Sprintf("%d of %d items adjusted (%s)", result.Successful, result.Total, input.Reason),
			ReferenceNumber: ref,
			Data: map[string]any{
				"total":      result.Total,
				"successful": result.Successful,
				"failed":     result.Failed,
				"reason":     input.Reason,
			},
		})
	}

	return result, nil
}

func referenceNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102"), suffix)
}
