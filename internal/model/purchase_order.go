package model

import "time"

type PurchaseOrderStatus string

const (
	POStatusDraft     PurchaseOrderStatus = "draft"
	POStatusSubmitted PurchaseOrderStatus = "submitted"
	POStatusApproved  PurchaseOrderStatus = "approved"
	POStatusOrdered   PurchaseOrderStatus = "ordered"
	POStatusReceived  PurchaseOrderStatus = "received"
	POStatusRejected  PurchaseOrderStatus = "rejected"
	POStatusCancelled PurchaseOrderStatus = "cancelled"
)

// FulfillmentState tracks what a purchase order has done to stock, so
// cancellation can tell an inbound expectation from received goods.
type FulfillmentState string

const (
	FulfillmentNone                FulfillmentState = "none"
	FulfillmentApprovedUnfulfilled FulfillmentState = "approved_unfulfilled"
	FulfillmentFulfilled           FulfillmentState = "fulfilled"
	FulfillmentCancelled           FulfillmentState = "cancelled"
)

type PurchaseOrder struct {
	ID                   string              `db:"id" json:"id"`
	TenantID             string              `db:"tenant_id" json:"tenant_id"`
	PONumber             string              `db:"po_number" json:"po_number"`
	Status               PurchaseOrderStatus `db:"status" json:"status"`
	FulfillmentState     FulfillmentState    `db:"fulfillment_state" json:"fulfillment_state"`
	ExpectedDeliveryDate *time.Time          `db:"expected_delivery_date" json:"expected_delivery_date"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
	Lines                []PurchaseOrderLine `db:"-" json:"lines"`
}

type PurchaseOrderLine struct {
	ID              string  `db:"id" json:"id"`
	PurchaseOrderID string  `db:"purchase_order_id" json:"purchase_order_id"`
	ProductID       *string `db:"product_id" json:"product_id"` // nil until the SKU is matched to a product
	SKU             string  `db:"sku" json:"sku"`
	RequestedQty    int64   `db:"requested_qty" json:"requested_qty"`
	ApprovedQty     int64   `db:"approved_qty" json:"approved_qty"`
	BackorderQty    int64   `db:"backorder_qty" json:"backorder_qty"`
	RejectedQty     int64   `db:"rejected_qty" json:"rejected_qty"`
}

// Quantity is the number of units the line moves: the approved quantity when
// set, otherwise what was requested minus what was rejected.
func (l *PurchaseOrderLine) Quantity() int64 {
	if l.ApprovedQty > 0 {
		return l.ApprovedQty
	}
	if q := l.RequestedQty - l.RejectedQty; q > 0 {
		return q
	}
	return 0
}

func (l *PurchaseOrderLine) Resolved() bool {
	return l.ProductID != nil && *l.ProductID != ""
}
