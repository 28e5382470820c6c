package outbound

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
)

type ThresholdEvaluator interface {
	Evaluate(ctx context.Context, productID string) error
}

type NotificationDispatcher interface {
	Notify(ctx context.Context, tenantID string, n *model.Notification) error
}

// CalendarEntity identifies the thing a calendar event is about, e.g. the
// expected arrival of a purchase order.
type CalendarEntity struct {
	Kind     string
	EntityID string
	TenantID string
	Title    string
}

const CalendarKindPOArrival = "purchase_order_arrival"

type CalendarEvents interface {
	Schedule(ctx context.Context, entity CalendarEntity, date time.Time) error
	Complete(ctx context.Context, entity CalendarEntity) error
	Cancel(ctx context.Context, entity CalendarEntity) error
}
