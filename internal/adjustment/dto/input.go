package dto

type Reason string

const (
	ReasonManual     Reason = "manual"
	ReasonStocktake  Reason = "stocktake"
	ReasonCorrection Reason = "correction"
	ReasonDamaged    Reason = "damaged"
	ReasonReturn     Reason = "return"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonManual, ReasonStocktake, ReasonCorrection, ReasonDamaged, ReasonReturn:
		return true
	}
	return false
}

// ValidForBulk reports whether r may be used for a batch adjustment.
func (r Reason) ValidForBulk() bool {
	return r == ReasonStocktake || r == ReasonCorrection
}

type AdjustOneInput struct {
	TenantID        string
	UserID          string
	ProductID       string `json:"product_id"`
	DeltaOnHand     int64  `json:"delta_on_hand"`
	Reason          Reason `json:"reason"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

type BulkItem struct {
	ProductID   string `json:"product_id"`
	DeltaOnHand int64  `json:"delta_on_hand"`
	Notes       string `json:"notes"`
}

type AdjustBulkInput struct {
	TenantID        string
	UserID          string
	Reason          Reason     `json:"reason"`
	ReferenceNumber string     `json:"reference_number"`
	Items           []BulkItem `json:"items"`
}
