package dto

import "github.com/fekuna/omnipos-inventory-ledger/internal/model"

type ItemResult struct {
	ProductID string             `json:"product_id"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Entry     *model.LedgerEntry `json:"entry,omitempty"`

	Err error `json:"-"`
}

type BulkResult struct {
	ReferenceNumber string       `json:"reference_number"`
	Total           int          `json:"total"`
	Successful      int          `json:"successful"`
	Failed          int          `json:"failed"`
	Results         []ItemResult `json:"results"`
}

// Partial reports whether the batch had both successes and failures.
func (r *BulkResult) Partial() bool {
	return r.Successful > 0 && r.Failed > 0
}
