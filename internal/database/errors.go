package database

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped in StoreError) by every store implementation.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// StoreError describes a failed store operation. Kind is one of the sentinel
// errors above, or nil for I/O failures of the underlying database.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op + ": store error"
	}
}

func (e *StoreError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound returns a StoreError of kind ErrNotFound.
func NotFound(op string) error {
	return &StoreError{Op: op, Kind: ErrNotFound}
}

// Conflict returns a StoreError of kind ErrConflict.
func Conflict(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrConflict, Err: err}
}

// Invalid returns a StoreError of kind ErrInvalid.
func Invalid(op, reason string) error {
	return &StoreError{Op: op, Kind: ErrInvalid, Err: errors.New(reason)}
}

// IOError wraps a failure of the underlying database.
func IOError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
