package courier

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var (
	ErrNoActiveDelivery  = errors.New("no active delivery")
	ErrAlreadyActive     = errors.New("driver already has an active delivery")
	ErrNoAction          = errors.New("no action available")
	ErrStatusSyncPending = errors.New("status sync pending")
)

// SyncPendingError reports a delivery write that succeeded while the linked
// order write did not. Reconcile repairs it.
type SyncPendingError struct {
	DeliveryID string
	OrderID    string
	Want       domain.OrderStatus
	Err        error
}

func (e *SyncPendingError) Error() string {
	return fmt.Sprintf("delivery %s updated but order %s not yet %s: %v", e.DeliveryID, e.OrderID, e.Want, e.Err)
}

func (e *SyncPendingError) Unwrap() error { return e.Err }

func (e *SyncPendingError) Is(target error) bool { return target == ErrStatusSyncPending }
