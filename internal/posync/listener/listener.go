package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync/dto"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventPurchaseOrderApproved  = "PurchaseOrderApproved"
	EventPurchaseOrderReceived  = "PurchaseOrderReceived"
	EventPurchaseOrderCancelled = "PurchaseOrderCancelled"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PurchaseOrderListener struct {
	consumer   MessageReader
	uc         posync.UseCase
	logger     logger.ZapLogger
	newBackOff func() backoff.BackOff
}

func NewPurchaseOrderListener(consumer MessageReader, uc posync.UseCase, logger logger.ZapLogger) *PurchaseOrderListener {
	return &PurchaseOrderListener{
		consumer:   consumer,
		uc:         uc,
		logger:     logger,
		newBackOff: retryBackOff,
	}
}

// retryBackOff never gives up: a transient failure holds the partition
// until the sync goes through or the listener stops.
func retryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func (l *PurchaseOrderListener) Start(ctx context.Context) {
	l.logger.Info("Starting purchase order Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping purchase order Kafka listener")
			return
		default:
			msg, err := l.consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to fetch kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			if err := l.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to commit kafka message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

// handle processes msg and commits its offset once the event is settled:
// synced, or rejected for a reason a retry cannot change. Transient failures
// are retried in place. When ctx ends first the offset stays uncommitted and
// the event is redelivered to the next consumer.
func (l *PurchaseOrderListener) handle(ctx context.Context, msg kafka.Message) error {
	op := func() error {
		err := l.processMessage(ctx, msg.Value)
		if err != nil && !ledger.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		l.logger.Warn("Purchase order sync failed, retrying",
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(l.newBackOff(), ctx), onRetry)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		l.logger.Error("Failed to sync purchase order, event discarded",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
	return l.consumer.CommitMessages(ctx, msg)
}

type PurchaseOrderEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Payload   PurchaseOrderPayload `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`
}

type PurchaseOrderPayload struct {
	PurchaseOrderID string `json:"purchase_order_id"`
	TenantID        string `json:"tenant_id"`
	UserID          string `json:"user_id"`
	Reason          string `json:"reason"`
}

// processMessage handles one event. Malformed and unknown events are logged
// and reported as handled.
func (l *PurchaseOrderListener) processMessage(ctx context.Context, value []byte) error {
	var event PurchaseOrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return nil
	}

	actor := model.Actor{TenantID: event.Payload.TenantID, UserID: event.Payload.UserID}
	if actor.UserID == "" {
		actor.UserID = "system"
	}
	poID := event.Payload.PurchaseOrderID

	var (
		result *dto.SyncResult
		err    error
	)
	switch event.EventType {
	case EventPurchaseOrderApproved:
		result, err = l.uc.SyncApproval(ctx, poID, actor)
	case EventPurchaseOrderReceived:
		result, err = l.uc.SyncReceipt(ctx, poID, actor)
	case EventPurchaseOrderCancelled:
		result, err = l.uc.SyncCancellation(ctx, poID, actor, event.Payload.Reason)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s for %s: %w", event.EventType, event.EventID, poID, err)
	}

	if result != nil && result.Failed > 0 {
		l.logger.Warn("Purchase order event processed with failed lines",
			zap.String("event_type", event.EventType),
			zap.String("po_id", poID),
			zap.Int("failed", result.Failed),
		)
		return nil
	}
	l.logger.Info("Processed purchase order event",
		zap.String("event_type", event.EventType),
		zap.String("po_id", poID),
	)
	return nil
}
