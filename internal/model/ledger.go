package model

import "time"

type TransactionType string

const (
	TransactionManualAdjustment    TransactionType = "MANUAL_ADJUSTMENT"
	TransactionStocktakeAdjustment TransactionType = "STOCKTAKE_ADJUSTMENT"
	TransactionPOApproved          TransactionType = "PO_APPROVED"
	TransactionPOReceived          TransactionType = "PO_RECEIVED"
	TransactionPOCancelled         TransactionType = "PO_CANCELLED"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryCancelled EntryStatus = "cancelled"
)

type SourceType string

const (
	SourceAdjustment    SourceType = "adjustment"
	SourcePurchaseOrder SourceType = "purchase_order"
)

type Source struct {
	Type SourceType
	ID   string
}

// LedgerEntry is immutable once written, except for Status.
type LedgerEntry struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	SKU             string          `db:"sku" json:"sku"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	OccurredAt      time.Time       `db:"occurred_at" json:"occurred_at"`
	SourceType      SourceType      `db:"source_type" json:"source_type"`
	SourceID        string          `db:"source_id" json:"source_id"`
	SourceLineID    *string         `db:"source_line_id" json:"source_line_id,omitempty"`
	ReferenceNumber string          `db:"reference_number" json:"reference_number"`
	Reason          *string         `db:"reason" json:"reason,omitempty"`
	QuantityChange  int64           `db:"quantity_change" json:"quantity_change"`
	InboundChange   int64           `db:"inbound_change" json:"inbound_change"`
	OnHandBefore    int64           `db:"on_hand_before" json:"on_hand_before"`
	OnHandAfter     int64           `db:"on_hand_after" json:"on_hand_after"`
	AllocatedBefore int64           `db:"allocated_before" json:"allocated_before"`
	AllocatedAfter  int64           `db:"allocated_after" json:"allocated_after"`
	InboundBefore   int64           `db:"inbound_before" json:"inbound_before"`
	InboundAfter    int64           `db:"inbound_after" json:"inbound_after"`
	Status          EntryStatus     `db:"status" json:"status"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedBy       *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Balanced reports whether the entry's snapshots satisfy after = before + delta
// for both on_hand and inbound.
func (e *LedgerEntry) Balanced() bool {
	return e.OnHandAfter == e.OnHandBefore+e.QuantityChange &&
		e.InboundAfter == e.InboundBefore+e.InboundChange &&
		e.AllocatedAfter == e.AllocatedBefore
}
