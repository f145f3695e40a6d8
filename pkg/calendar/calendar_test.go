package calendar

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSlotIDIgnoresZone(t *testing.T) {
	t.Parallel()

	utc := time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)
	east := utc.In(time.FixedZone("EST", -5*60*60))

	a, b := NewSlot(utc, 30), NewSlot(east, 30)
	if a.ID() != b.ID() || len(a.ID()) != 8 {
		t.Fatalf("ids = %q, %q, want equal 8-char ids", a.ID(), b.ID())
	}
	if a.ID() == NewSlot(utc, 45).ID() {
		t.Fatal("duration does not affect id")
	}
	if !a.Equal(b.In(time.UTC)) {
		t.Fatal("same instant not equal")
	}
	if got := a.End(); !got.Equal(utc.Add(30 * time.Minute)) {
		t.Fatalf("End() = %s", got)
	}
}

func TestSlotJSONRebuildsID(t *testing.T) {
	t.Parallel()

	slot := NewSlot(time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC), 30)
	raw, err := slot.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	var got AvailableSlot
	if err := got.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if got.ID() != slot.ID() || !got.Equal(slot) {
		t.Fatalf("decoded slot = %+v, want %+v", got, slot)
	}

	if err := got.UnmarshalJSON([]byte(`{"duration_minutes":30}`)); err == nil {
		t.Fatal("expected error for missing start")
	}
}

func TestResultKind(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		res  Result
		ok   bool
		kind ErrorKind
	}{
		{"slots", Slots([]AvailableSlot{NewSlot(day, 30)}), true, ""},
		{"empty", Slots(nil), false, KindNoSlotsForDay},
		{"unavailable", Failed(Unavailable("boom")), false, KindCalendarUnavailable},
		{"no slots", Failed(NoSlots(day)), false, KindNoSlotsForDay},
		{"invalid range", Failed(InvalidRange("end before start")), false, KindInvalidDateRange},
	}
	for _, tt := range tests {
		if got := tt.res.OK(); got != tt.ok {
			t.Fatalf("%s: OK() = %v, want %v", tt.name, got, tt.ok)
		}
		if got := tt.res.Kind(); got != tt.kind {
			t.Fatalf("%s: Kind() = %q, want %q", tt.name, got, tt.kind)
		}
	}

	if got := NoSlots(day).Detail; got != "2025-01-15" {
		t.Fatalf("NoSlots detail = %q", got)
	}
}

func TestIsSlotUnavailableUnwraps(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("book: %w", &SlotUnavailableError{Detail: "taken"})
	if !IsSlotUnavailable(err) {
		t.Fatal("wrapped SlotUnavailableError not detected")
	}
	if IsSlotUnavailable(&AdapterError{Op: "book", Status: 400}) {
		t.Fatal("AdapterError reported as slot conflict")
	}

	cause := errors.New("dial tcp: timeout")
	if !errors.Is(&AdapterInitError{Err: cause}, cause) {
		t.Fatal("AdapterInitError does not unwrap")
	}
}

func TestConfirmationReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		conf Confirmation
		want string
	}{
		{Confirmation{ID: "1", UID: "u", URL: "https://x"}, "1"},
		{Confirmation{UID: "u", URL: "https://x"}, "u"},
		{Confirmation{URL: "https://x"}, "https://x"},
		{Confirmation{}, ""},
	}
	for _, tt := range tests {
		if got := tt.conf.Reference(); got != tt.want {
			t.Fatalf("Reference(%+v) = %q, want %q", tt.conf, got, tt.want)
		}
		if tt.conf.HasReference() != (tt.want != "") {
			t.Fatalf("HasReference(%+v) mismatch", tt.conf)
		}
	}
}
