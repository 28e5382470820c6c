package model

import "time"

type StockRecord struct {
	ProductID         string     `db:"product_id" json:"product_id"`
	TenantID          string     `db:"tenant_id" json:"tenant_id"`
	SKU               string     `db:"sku" json:"sku"`
	OnHand            int64      `db:"on_hand" json:"on_hand"`
	Allocated         int64      `db:"allocated" json:"allocated"`
	Inbound           int64      `db:"inbound" json:"inbound"`
	LowThreshold      int64      `db:"low_threshold" json:"low_threshold"`
	CriticalThreshold int64      `db:"critical_threshold" json:"critical_threshold"`
	MaxThreshold      int64      `db:"max_threshold" json:"max_threshold"` // 0 means no ceiling
	AlertsEnabled     bool       `db:"alerts_enabled" json:"alerts_enabled"`
	LastCheckedAt     *time.Time `db:"last_checked_at" json:"last_checked_at"`
	Version           int64      `db:"version" json:"version"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Available is on_hand minus allocated, floored at zero. It is derived on read
// and never stored.
func (s *StockRecord) Available() int64 {
	if a := s.OnHand - s.Allocated; a > 0 {
		return a
	}
	return 0
}

// Delta is a signed change applied to a stock record's counters.
type Delta struct {
	OnHand  int64
	Inbound int64
}
