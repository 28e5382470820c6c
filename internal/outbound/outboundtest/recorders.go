// Package outboundtest provides recording collaborators for tests that need
// to observe side effects.
package outboundtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
)

type Evaluator struct {
	mu       sync.Mutex
	products []string
	Err      error
}

func (e *Evaluator) Evaluate(ctx context.Context, productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.products = append(e.products, productID)
	return e.Err
}

func (e *Evaluator) Products() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.products...)
}

type Sent struct {
	TenantID     string
	Notification model.Notification
}

var ErrUnavailable = errors.New("notifier unavailable")

// Notifier records every send. Failed sends are not recorded: the first
// FailNext calls return ErrUnavailable, and after that every call returns Err.
type Notifier struct {
	mu       sync.Mutex
	sent     []Sent
	attempts int
	Err      error
	FailNext int
}

func (n *Notifier) Notify(ctx context.Context, tenantID string, note *model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts++
	if n.FailNext > 0 {
		n.FailNext--
		return ErrUnavailable
	}
	n.sent = append(n.sent, Sent{TenantID: tenantID, Notification: *note})
	return n.Err
}

func (n *Notifier) Attempts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// OfType returns the notifications of type t in send order.
func (n *Notifier) OfType(t model.NotificationType) []Sent {
	var out []Sent
	for _, s := range n.Sent() {
		if s.Notification.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type CalendarCall struct {
	Op     string
	Entity outbound.CalendarEntity
	Date   time.Time
}

type Calendar struct {
	mu    sync.Mutex
	calls []CalendarCall
}

func (c *Calendar) Schedule(ctx context.Context, e outbound.CalendarEntity, date time.Time) error {
	return c.record(CalendarCall{Op: "schedule", Entity: e, Date: date})
}

func (c *Calendar) Complete(ctx context.Context, e outbound.CalendarEntity) error {
	return c.record(CalendarCall{Op: "complete", Entity: e})
}

func (c *Calendar) Cancel(ctx context.Context, e outbound.CalendarEntity) error {
	return c.record(CalendarCall{Op: "cancel", Entity: e})
}

func (c *Calendar) record(call CalendarCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return nil
}

func (c *Calendar) Calls() []CalendarCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CalendarCall(nil), c.calls...)
}

// Recorders bundles one of each recorder behind an inline Effects, so every
// side effect has happened by the time the call under test returns.
type Recorders struct {
	Evaluator *Evaluator
	Notifier  *Notifier
	Calendar  *Calendar
	Effects   *outbound.Effects
}

func New() *Recorders {
	r := &Recorders{
		Evaluator: &Evaluator{},
		Notifier:  &Notifier{},
		Calendar:  &Calendar{},
	}
	q := outbound.NewQueue(outbound.Config{MaxAttempts: 1}, logger.NewNop())
	r.Effects = outbound.NewEffects(q, r.Evaluator, r.Notifier, r.Calendar)
	return r
}
