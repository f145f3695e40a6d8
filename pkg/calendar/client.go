// Package calendar defines the availability and booking contract shared by
// the upstream adapter and the booking state machine.
package calendar

import (
	"context"
	"time"
)

// Client hides which upstream API version served a request.
type Client interface {
	// Initialize learns the appointment duration from upstream metadata.
	Initialize(ctx context.Context) error
	// ListAvailableSlots returns the open slots between start and the end of
	// end's local day.
	ListAvailableSlots(ctx context.Context, start, end time.Time) Result
	// ScheduleAppointment books req.Start. A nil error with an empty
	// Confirmation means upstream accepted the call but returned no reference.
	ScheduleAppointment(ctx context.Context, req BookingRequest) (Confirmation, error)
	// Close releases network resources. Safe to call more than once.
	Close() error
}

// AvailabilityChecker is an optional capability for re-checking a slot just
// before booking.
type AvailabilityChecker interface {
	IsSlotAvailable(ctx context.Context, slot AvailableSlot) (bool, error)
}

type BookingRequest struct {
	Start time.Time
	Name  string
	Email string
	Phone string
	Notes string
}

type Confirmation struct {
	ID  string
	UID string
	URL string
}

func (c Confirmation) HasReference() bool {
	return c.ID != "" || c.UID != "" || c.URL != ""
}

// Reference is the identifier best suited for reading back to a caller.
func (c Confirmation) Reference() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.UID != "":
		return c.UID
	default:
		return c.URL
	}
}
