package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	key   string
	value []byte
}

func (p *capturePublisher) Publish(ctx context.Context, key string, value []byte) error {
	p.key, p.value = key, value
	return nil
}

func TestNotify_PublishesKeyedByTenant(t *testing.T) {
	pub := &capturePublisher{}
	d := NewKafkaDispatcher(pub)

	err := d.Notify(context.Background(), "t1", &model.Notification{
		Type:            model.NotificationPOCancelled,
		Title:           "PO cancelled - inventory updated",
		Audience:        model.AudienceInventoryManagers,
		ReferenceNumber: "PO-1001",
		CreatedAt:       time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", pub.key)

	var got struct {
		TenantID     string             `json:"tenant_id"`
		Notification model.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(pub.value, &got))
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, model.NotificationPOCancelled, got.Notification.Type)
	assert.Equal(t, "PO-1001", got.Notification.ReferenceNumber)
}
