package calendar

import (
	"fmt"
	"time"
)

type ErrorKind string

const (
	KindCalendarUnavailable ErrorKind = "calendar_unavailable"
	KindNoSlotsForDay       ErrorKind = "no_slots_for_day"
	KindInvalidDateRange    ErrorKind = "invalid_date_range"
)

// CalendarError describes why an availability query produced no slots.
// It travels inside a Result and never carries partial slot data.
type CalendarError struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *CalendarError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
}

func Unavailable(detail string) *CalendarError {
	return &CalendarError{Kind: KindCalendarUnavailable, Message: "calendar service is unavailable", Detail: detail}
}

func NoSlots(day time.Time) *CalendarError {
	return &CalendarError{Kind: KindNoSlotsForDay, Message: "no slots available for day", Detail: day.Format(time.DateOnly)}
}

func InvalidRange(detail string) *CalendarError {
	return &CalendarError{Kind: KindInvalidDateRange, Message: "invalid date range", Detail: detail}
}

// Result is the outcome of an availability query: either slots or an error.
type Result struct {
	Slots []AvailableSlot
	Err   *CalendarError
}

func Slots(slots []AvailableSlot) Result { return Result{Slots: slots} }

func Failed(err *CalendarError) Result { return Result{Err: err} }

// OK reports success: no error and at least one slot.
func (r Result) OK() bool { return r.Err == nil && len(r.Slots) > 0 }

// Kind folds an empty errorless result into no_slots_for_day.
func (r Result) Kind() ErrorKind {
	switch {
	case r.Err != nil:
		return r.Err.Kind
	case len(r.Slots) == 0:
		return KindNoSlotsForDay
	default:
		return ""
	}
}
