package notification

import (
	"context"
	"encoding/json"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/fekuna/omnipos-inventory-ledger/internal/outbound"
)

type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaDispatcher publishes notifications keyed by tenant. Fan-out to the
// audience's users and channels is done by the notification service that
// consumes the topic.
type KafkaDispatcher struct {
	publisher Publisher
}

func NewKafkaDispatcher(publisher Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher}
}

var _ outbound.NotificationDispatcher = (*KafkaDispatcher)(nil)

type message struct {
	TenantID     string              `json:"tenant_id"`
	Notification *model.Notification `json:"notification"`
}

func (d *KafkaDispatcher) Notify(ctx context.Context, tenantID string, n *model.Notification) error {
	value, err := json.Marshal(message{TenantID: tenantID, Notification: n})
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, tenantID, value)
}
