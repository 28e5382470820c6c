package listener

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fekuna/omnipos-inventory-ledger/internal/ledger"
	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/posync/dto"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op     dto.Operation
	poID   string
	actor  model.Actor
	reason string
}

// recordingUseCase returns errs in order, one per call, and err once they
// run out.
type recordingUseCase struct {
	mu    sync.Mutex
	calls []call
	errs  []error
	err   error
}

func (r *recordingUseCase) record(c call) (*dto.SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return nil, err
	}
	return &dto.SyncResult{}, r.err
}

func (r *recordingUseCase) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recordingUseCase) SyncApproval(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error) {
	return r.record(call{op: dto.OperationApproval, poID: poID, actor: actor})
}

func (r *recordingUseCase) SyncReceipt(ctx context.Context, poID string, actor model.Actor) (*dto.SyncResult, error) {
	return r.record(call{op: dto.OperationReceipt, poID: poID, actor: actor})
}

func (r *recordingUseCase) SyncCancellation(ctx context.Context, poID string, actor model.Actor, reason string) (*dto.SyncResult, error) {
	return r.record(call{op: dto.OperationCancellation, poID: poID, actor: actor, reason: reason})
}

// sliceReader hands out its messages and then blocks until ctx ends.
type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *sliceReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *sliceReader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func newListener(reader MessageReader, uc *recordingUseCase) *PurchaseOrderListener {
	l := NewPurchaseOrderListener(reader, uc, logger.NewNop())
	l.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return l
}

func event(t *testing.T, eventType, poID, userID, reason string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(PurchaseOrderEvent{
		EventID:   "evt-" + eventType,
		EventType: eventType,
		Payload: PurchaseOrderPayload{
			PurchaseOrderID: poID,
			TenantID:        "t1",
			UserID:          userID,
			Reason:          reason,
		},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestStart_RoutesEvents(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{
		event(t, EventPurchaseOrderApproved, "po1", "u1", ""),
		{Value: []byte("not json")},
		event(t, "PurchaseOrderSubmitted", "po1", "u1", ""),
		event(t, EventPurchaseOrderReceived, "po1", "", ""),
		event(t, EventPurchaseOrderCancelled, "po2", "u2", "duplicate order"),
	}}
	uc := &recordingUseCase{}
	l := newListener(reader, uc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	calls := uc.Calls()
	assert.Equal(t, call{op: dto.OperationApproval, poID: "po1", actor: model.Actor{TenantID: "t1", UserID: "u1"}}, calls[0])
	assert.Equal(t, "system", calls[1].actor.UserID, "events without a user run as system")
	assert.Equal(t, dto.OperationReceipt, calls[1].op)
	assert.Equal(t, call{op: dto.OperationCancellation, poID: "po2", actor: model.Actor{TenantID: "t1", UserID: "u2"}, reason: "duplicate order"}, calls[2])
}

func TestHandle_RetriesTransientFailuresBeforeCommitting(t *testing.T) {
	for _, transient := range []error{ledger.ErrBusy, ledger.ErrWriteFailure} {
		t.Run(transient.Error(), func(t *testing.T) {
			reader := &sliceReader{}
			uc := &recordingUseCase{errs: []error{transient}}
			l := newListener(reader, uc)
			msg := event(t, EventPurchaseOrderReceived, "po1", "u1", "")
			msg.Offset = 42

			require.NoError(t, l.handle(context.Background(), msg))

			calls := uc.Calls()
			require.Len(t, calls, 2)
			assert.Equal(t, dto.OperationReceipt, calls[1].op)
			committed := reader.Committed()
			require.Len(t, committed, 1)
			assert.Equal(t, int64(42), committed[0].Offset)
		})
	}
}

func TestHandle_CallerErrorsAreCommittedWithoutRetry(t *testing.T) {
	reader := &sliceReader{}
	uc := &recordingUseCase{err: ledger.ErrPurchaseOrderNotFound}
	l := newListener(reader, uc)

	require.NoError(t, l.handle(context.Background(), event(t, EventPurchaseOrderApproved, "po1", "u1", "")))

	assert.Len(t, uc.Calls(), 1)
	assert.Len(t, reader.Committed(), 1)
}

func TestHandle_StoppingMidRetryLeavesOffsetUncommitted(t *testing.T) {
	reader := &sliceReader{}
	uc := &recordingUseCase{err: ledger.ErrBusy}
	l := newListener(reader, uc)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.handle(ctx, event(t, EventPurchaseOrderCancelled, "po1", "u1", ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, len(uc.Calls()), 2)
	assert.Empty(t, reader.Committed())
}
