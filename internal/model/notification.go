package model

import "time"

type NotificationType string

const (
	NotificationStockAdjusted    NotificationType = "stock_adjusted"
	NotificationBulkAdjusted     NotificationType = "bulk_adjustment_completed"
	NotificationStockReplenished NotificationType = "stock_replenished"
	NotificationPOCancelled      NotificationType = "po_cancelled"
	NotificationStockAlert       NotificationType = "stock_alert"
)

const AudienceInventoryManagers = "inventory_managers"

type Notification struct {
	Type            NotificationType `json:"type"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Audience        string           `json:"audience"`
	ProductID       string           `json:"product_id,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Data            map[string]any   `json:"data,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Actor is the tenant-scoped identity a request runs as.
type Actor struct {
	TenantID string
	UserID   string
}
