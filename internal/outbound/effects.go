package outbound

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

// Effects is what the use cases call after a successful mutation. Each
// method turns one collaborator call into a queue task; none of them can fail
// the caller.
type Effects struct {
	queue     *Queue
	evaluator ThresholdEvaluator
	notifier  NotificationDispatcher
	calendar  CalendarEvents
}

func NewEffects(q *Queue, evaluator ThresholdEvaluator, notifier NotificationDispatcher, calendar CalendarEvents) *Effects {
	return &Effects{
		queue:     q,
		evaluator: evaluator,
		notifier:  notifier,
		calendar:  calendar,
	}
}

// Evaluate runs the threshold evaluator before returning.
func (e *Effects) Evaluate(ctx context.Context, productID string) {
	if e.evaluator == nil {
		return
	}
	e.queue.Do(ctx, Task{
		Name: "threshold.evaluate",
		Run:  func(ctx context.Context) error { return e.evaluator.Evaluate(ctx, productID) },
	})
}

// EvaluateAsync queues a threshold evaluation and returns immediately.
func (e *Effects) EvaluateAsync(productID string) {
	if e.evaluator == nil {
		return
	}
	e.queue.Enqueue(Task{
		Name: "threshold.evaluate",
		Run:  func(ctx context.Context) error { return e.evaluator.Evaluate(ctx, productID) },
	})
}

func (e *Effects) Notify(tenantID string, n *model.Notification) {
	if e.notifier == nil || tenantID == "" {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Audience == "" {
		n.Audience = model.AudienceInventoryManagers
	}
	e.queue.Enqueue(Task{
		Name: "notification." + string(n.Type),
		Run:  func(ctx context.Context) error { return e.notifier.Notify(ctx, tenantID, n) },
	})
}

func (e *Effects) ScheduleArrival(entity CalendarEntity, date time.Time) {
	if e.calendar == nil {
		return
	}
	e.queue.Enqueue(Task{
		Name: "calendar.schedule",
		Run:  func(ctx context.Context) error { return e.calendar.Schedule(ctx, entity, date) },
	})
}

func (e *Effects) CompleteArrival(entity CalendarEntity) {
	if e.calendar == nil {
		return
	}
	e.queue.Enqueue(Task{
		Name: "calendar.complete",
		Run:  func(ctx context.Context) error { return e.calendar.Complete(ctx, entity) },
	})
}

func (e *Effects) CancelArrival(entity CalendarEntity) {
	if e.calendar == nil {
		return
	}
	e.queue.Enqueue(Task{
		Name: "calendar.cancel",
		Run:  func(ctx context.Context) error { return e.calendar.Cancel(ctx, entity) },
	})
}
