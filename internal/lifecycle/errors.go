package lifecycle

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

var (
	ErrInvalidName      = errors.New("customer name is required")
	ErrInvalidSignature = errors.New("face signature is required")
	ErrAlreadyCheckedIn = errors.New("customer is already checked in")
	ErrNoOpenVisit      = errors.New("customer has no open visit")
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrNoCandidate is returned by the one-click actions when no face was detected recently.
	ErrNoCandidate = errors.New("no detected face to act on")
)

// PartialCheckoutError reports a checkout whose customer update succeeded but
// whose past record could not be written. The customer is checked out and the
// record has to be reconciled by an operator.
type PartialCheckoutError struct {
	CustomerID   int64
	CustomerName string
	Record       database.PastRecord
	Err          error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("customer %d (%s) checked out but past record was not written: %v",
		e.CustomerID, e.CustomerName, e.Err)
}

func (e *PartialCheckoutError) Unwrap() error {
	return e.Err
}

// mapStoreError translates store sentinels into lifecycle errors.
// conflict is the lifecycle error a ErrConflict stands for in the calling operation.
func mapStoreError(err error, id int64, conflict error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: id %d", ErrCustomerNotFound, id)
	case errors.Is(err, database.ErrConflict) && conflict != nil:
		return fmt.Errorf("%w: id %d", conflict, id)
	default:
		return err
	}
}
