package ledger

import "errors"

var (
	ErrProductNotFound           = errors.New("product not found")
	ErrForbidden                 = errors.New("product does not belong to tenant")
	ErrInvalidReason             = errors.New("invalid adjustment reason")
	ErrPurchaseOrderNotFound     = errors.New("purchase order not found")
	ErrNoLineItems               = errors.New("no line items")
	ErrInvalidPurchaseOrderState = errors.New("purchase order is not in a state that affects stock")
	ErrNegativeStock             = errors.New("on_hand would fall below the configured floor")
	ErrWriteFailure              = errors.New("ledger write failure")
	ErrBusy                      = errors.New("another operation holds the lock, try again later")

	// ErrConflict is returned by a Repository when a transaction lost a
	// serialization race or deadlock. The Writer retries it.
	ErrConflict = errors.New("ledger transaction conflict")
)

// IsCallerError reports whether err is a validation or permission failure
// that must not be retried.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrPurchaseOrderNotFound) ||
		errors.Is(err, ErrNoLineItems) ||
		errors.Is(err, ErrInvalidPurchaseOrderState) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, ErrBusy)
}

// IsTransient reports whether err may succeed when the same call is repeated.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrWriteFailure) ||
		errors.Is(err, ErrConflict)
}
