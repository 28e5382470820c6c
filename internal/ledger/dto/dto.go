package dto

import "time"

type EntryFilters struct {
	TenantID        string
	ProductID       string
	TransactionType string
	SourceType      string
	SourceID        string
	ReferenceNumber string
	Status          string
	StartDate       *time.Time
	EndDate         *time.Time
	Page            int
	PageSize        int
}

type StockFilters struct {
	TenantID string
	LowStock bool // on_hand - allocated <= low_threshold
	Page     int
	PageSize int
}

// StatusUpdate selects ledger entries of one source whose status should move
// from From to To. Empty ProductID/TransactionType match everything.
type StatusUpdate struct {
	SourceType      string
	SourceID        string
	ProductID       string
	SourceLineID    string
	TransactionType string
	From            string
	To              string
}
