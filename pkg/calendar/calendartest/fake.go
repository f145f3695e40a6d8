// Package calendartest provides an in-memory calendar.Client for tests.
package calendartest

import (
	"context"
	"sync"
	"time"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

var _ calendar.Client = (*Fake)(nil)
var _ calendar.AvailabilityChecker = (*Fake)(nil)

type ListCall struct {
	Start time.Time
	End   time.Time
}

// Fake returns canned results and records every call. Results are consumed
// in order; the last one repeats once the queue is exhausted.
type Fake struct {
	mu sync.Mutex

	ListResults []calendar.Result
	BookResults []BookResult
	// Available, when set, answers IsSlotAvailable.
	Available func(calendar.AvailableSlot) (bool, error)
	InitErr   error
	// Loc, when set, is reported as the calendar's local zone.
	Loc *time.Location

	ListCalls  []ListCall
	BookCalls  []calendar.BookingRequest
	CheckCalls int
	InitCalls  int
	CloseCalls int
}

type BookResult struct {
	Confirmation calendar.Confirmation
	Err          error
}

func (f *Fake) Location() *time.Location { return f.Loc }

func (f *Fake) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *Fake) ListAvailableSlots(_ context.Context, start, end time.Time) calendar.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls = append(f.ListCalls, ListCall{Start: start, End: end})
	if len(f.ListResults) == 0 {
		return calendar.Failed(calendar.Unavailable("no fake result"))
	}
	idx := min(len(f.ListCalls)-1, len(f.ListResults)-1)
	return f.ListResults[idx]
}

func (f *Fake) ScheduleAppointment(_ context.Context, req calendar.BookingRequest) (calendar.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BookCalls = append(f.BookCalls, req)
	if len(f.BookResults) == 0 {
		return calendar.Confirmation{ID: "fake-booking"}, nil
	}
	idx := min(len(f.BookCalls)-1, len(f.BookResults)-1)
	res := f.BookResults[idx]
	return res.Confirmation, res.Err
}

func (f *Fake) IsSlotAvailable(_ context.Context, slot calendar.AvailableSlot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	if f.Available == nil {
		return true, nil
	}
	return f.Available(slot)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}

func (f *Fake) BookCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.BookCalls)
}

func (f *Fake) ListCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ListCalls)
}

// Slots builds a successful result from start instants sharing one duration.
func Slots(duration int, starts ...time.Time) calendar.Result {
	out := make([]calendar.AvailableSlot, 0, len(starts))
	for _, s := range starts {
		out = append(out, calendar.NewSlot(s, duration))
	}
	return calendar.Slots(out)
}
