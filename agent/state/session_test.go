package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

func testSlots() []calendar.AvailableSlot {
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return []calendar.AvailableSlot{
		calendar.NewSlot(day.Add(10*time.Hour), 30),
		calendar.NewSlot(day.Add(11*time.Hour), 30),
		calendar.NewSlot(day.Add(14*time.Hour), 30),
	}
}

func TestSlotAliasesResolveEveryLabel(t *testing.T) {
	t.Parallel()

	slots := testSlots()
	aliases := SlotAliases(slots)
	for i, slot := range slots {
		for _, label := range SlotLabels(i+1, slot) {
			got, ok := aliases[label]
			if !ok {
				t.Fatalf("alias %q missing", label)
			}
			if !got.Equal(slot) {
				t.Fatalf("alias %q = %v, want %v", label, got.Start(), slot.Start())
			}
		}
	}
}

func TestSetCandidatesDropsSelection(t *testing.T) {
	t.Parallel()

	s := NewBookingSession("s1", time.Now())
	s.Reset()
	s.SetCandidates(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), testSlots())
	if _, err := s.Select("option 2"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	s.Advance(StageSlotChosen)

	s.SetCandidates(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), testSlots()[:1])
	if s.SelectedSlot != nil {
		t.Fatal("selection survived a new candidate list")
	}
	if s.Stage != StageSlotsListed {
		t.Fatalf("Stage = %v, want %v", s.Stage, StageSlotsListed)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSelectRejectsUnknownLabel(t *testing.T) {
	t.Parallel()

	s := NewBookingSession("s1", time.Now())
	if _, err := s.Select("1"); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("Select() error = %v, want ErrNoCandidates", err)
	}
	s.SetCandidates(time.Now(), testSlots())
	if _, err := s.Select("9"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("Select() error = %v, want ErrUnknownOption", err)
	}
}

func TestValidateRejectsForeignSelection(t *testing.T) {
	t.Parallel()

	s := NewBookingSession("s1", time.Now())
	s.SetCandidates(time.Now(), testSlots()[:1])
	foreign := testSlots()[2]
	s.SelectedSlot = &foreign
	if err := s.Validate(); !errors.Is(err, ErrSelectedForeign) {
		t.Fatalf("Validate() error = %v, want ErrSelectedForeign", err)
	}
}

func TestMarkBookedClearsFields(t *testing.T) {
	t.Parallel()

	s := NewBookingSession("s1", time.Now())
	s.Reset()
	s.SetCandidates(time.Now(), testSlots())
	if _, err := s.Select("1"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	s.AttendeeName, s.AttendeeEmail, s.AttendeePhone = "Ana", "ana@x.io", "5551234567"
	if !s.ReadyToBook() {
		t.Fatal("ReadyToBook() = false")
	}

	s.MarkBooked(calendar.Confirmation{UID: "uid-1"}, "done")
	if !s.Booked || s.Stage != StageBooked || s.AppointmentID != "uid-1" {
		t.Fatalf("unexpected booked state: %+v", s)
	}
	if s.SelectedSlot != nil || s.AttendeeName != "" || s.HasCandidates() {
		t.Fatal("booking fields not cleared")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	s.Reset()
	if s.Booked || s.LastConfirmation != "" || s.Stage != StageIntentAsserted {
		t.Fatalf("Reset() left booked history: %+v", s)
	}
}

func TestStageTextRoundTrip(t *testing.T) {
	t.Parallel()

	for st := StageIdle; st <= StageBooked; st++ {
		text, _ := st.MarshalText()
		var got Stage
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != st {
			t.Fatalf("round trip %v = %v", st, got)
		}
	}
	var s Stage
	if err := s.UnmarshalText([]byte("nope")); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}

	s := NewBookingSession("s1", time.Now())
	s.Notes = "first visit"
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Notes = "mutated"

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Notes != "first visit" {
		t.Fatalf("Load().Notes = %q", got.Notes)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d after Delete", store.Len())
	}
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilSessionState) {
		t.Fatalf("Save(nil) error = %v", err)
	}
}
