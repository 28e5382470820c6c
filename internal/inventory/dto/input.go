package dto

// InitializeStockInput creates the stock record for a newly created product.
type InitializeStockInput struct {
	TenantID          string
	UserID            string
	ProductID         string `json:"product_id"`
	SKU               string `json:"sku"`
	OpeningOnHand     int64  `json:"opening_on_hand"`
	Allocated         int64  `json:"allocated"`
	LowThreshold      int64  `json:"low_threshold"`
	CriticalThreshold int64  `json:"critical_threshold"`
	MaxThreshold      int64  `json:"max_threshold"`
	AlertsEnabled     bool   `json:"alerts_enabled"`
}
