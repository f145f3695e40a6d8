package calendar

import (
	"errors"
	"fmt"
)

// SlotUnavailableError means the upstream rejected a booking because the
// slot was taken in the meantime. It is terminal and never retried.
type SlotUnavailableError struct {
	Detail string
}

func (e *SlotUnavailableError) Error() string {
	if e.Detail == "" {
		return "slot is no longer available"
	}
	return "slot is no longer available: " + e.Detail
}

// AdapterInitError means the adapter could not determine its configuration
// from upstream at all.
type AdapterInitError struct {
	Err error
}

func (e *AdapterInitError) Error() string {
	return fmt.Sprintf("calendar adapter init: %v", e.Err)
}

func (e *AdapterInitError) Unwrap() error { return e.Err }

// AdapterError is a terminal upstream rejection or transport failure.
type AdapterError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *AdapterError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("calendar %s: status=%d: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("calendar %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("calendar %s: status=%d body=%s", e.Op, e.Status, e.Body)
	}
}

func (e *AdapterError) Unwrap() error { return e.Err }

func IsSlotUnavailable(err error) bool {
	var target *SlotUnavailableError
	return errors.As(err, &target)
}
