package dto

import "github.com/fekuna/omnipos-inventory-ledger/internal/model"

// StockView is a stock record with its derived available quantity.
type StockView struct {
	model.StockRecord
	Available int64 `json:"available"`
}

func NewStockView(rec *model.StockRecord) StockView {
	return StockView{StockRecord: *rec, Available: rec.Available()}
}
