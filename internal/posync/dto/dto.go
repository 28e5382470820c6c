package dto

import "github.com/fekuna/omnipos-inventory-ledger/internal/model"

type Operation string

const (
	OperationApproval     Operation = "approval"
	OperationReceipt      Operation = "receipt"
	OperationCancellation Operation = "cancellation"
)

type LineOutcome string

const (
	LineApplied LineOutcome = "applied"
	LineSkipped LineOutcome = "skipped"
	LineFailed  LineOutcome = "failed"
)

type LineResult struct {
	LineID    string             `json:"line_id"`
	ProductID string             `json:"product_id,omitempty"`
	SKU       string             `json:"sku"`
	Quantity  int64              `json:"quantity"`
	Outcome   LineOutcome        `json:"outcome"`
	Detail    string             `json:"detail,omitempty"`
	Entry     *model.LedgerEntry `json:"entry,omitempty"`
}

type SyncResult struct {
	PurchaseOrderID  string                 `json:"purchase_order_id"`
	PONumber         string                 `json:"po_number"`
	Operation        Operation              `json:"operation"`
	FulfillmentState model.FulfillmentState `json:"fulfillment_state"`
	Applied          int                    `json:"applied"`
	Skipped          int                    `json:"skipped"`
	Failed           int                    `json:"failed"`
	Lines            []LineResult           `json:"lines"`
}

func (r *SyncResult) Add(line LineResult) {
	switch line.Outcome {
	case LineApplied:
		r.Applied++
	case LineSkipped:
		r.Skipped++
	case LineFailed:
		r.Failed++
	}
	r.Lines = append(r.Lines, line)
}
