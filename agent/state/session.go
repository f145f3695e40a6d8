package state

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

// Stage is the booking dialogue position. Stages are ordered; an action's
// precondition is a minimum stage.
type Stage int

const (
	StageIdle Stage = iota
	StageIntentAsserted
	StageNotesCollected
	StageSlotsListed
	StageSlotChosen
	StageNameCollected
	StageEmailCollected
	StagePhoneCollected
	StageConfirmPending
	StageBooked
)

var stageNames = [...]string{
	"idle",
	"intent_asserted",
	"notes_collected",
	"slots_listed",
	"slot_chosen",
	"name_collected",
	"email_collected",
	"phone_collected",
	"confirm_pending",
	"booked",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// BookingSession is the per-conversation state of the booking dialogue.
// Options is the canonical candidate list; Candidates is derived from it.
type BookingSession struct {
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`

	IntentAsserted bool       `json:"intent_asserted"`
	Notes          string     `json:"notes,omitempty"`
	PreferredDay   *time.Time `json:"preferred_day,omitempty"`

	Options      []calendar.AvailableSlot          `json:"options,omitempty"`
	Candidates   map[string]calendar.AvailableSlot `json:"-"`
	SelectedSlot *calendar.AvailableSlot           `json:"selected_slot,omitempty"`

	AttendeeName  string `json:"attendee_name,omitempty"`
	AttendeeEmail string `json:"attendee_email,omitempty"`
	AttendeePhone string `json:"attendee_phone,omitempty"`

	Confirmed        bool   `json:"confirmed"`
	Booked           bool   `json:"booked"`
	AppointmentID    string `json:"appointment_id,omitempty"`
	AppointmentURL   string `json:"appointment_url,omitempty"`
	LastConfirmation string `json:"last_confirmation,omitempty"`

	LastTurnID    string `json:"last_turn_id,omitempty"`
	CallsThisTurn int    `json:"calls_this_turn"`
	ActionSeq     int    `json:"action_seq"`

	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrUnknownOption   = errors.New("option is not one of the offered slots")
	ErrNoCandidates    = errors.New("no slot candidates")
	ErrBookedMissing   = errors.New("booked session has no appointment reference")
	ErrSelectedForeign = errors.New("selected slot is not among candidates")
)

func NewBookingSession(sessionID string, now time.Time) *BookingSession {
	return &BookingSession{
		SessionID:  sessionID,
		Stage:      StageIdle,
		Candidates: map[string]calendar.AvailableSlot{},
		UpdatedAt:  now.UTC(),
	}
}

func (s *BookingSession) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Advance moves the stage forward; it never moves it back.
func (s *BookingSession) Advance(to Stage) {
	if to > s.Stage {
		s.Stage = to
	}
}

// AtLeast reports whether the session has reached stage.
func (s *BookingSession) AtLeast(stage Stage) bool {
	return s.Stage >= stage
}

// ClearBookingFields drops everything collected for a booking while keeping
// the turn guard.
func (s *BookingSession) ClearBookingFields() {
	s.Notes = ""
	s.PreferredDay = nil
	s.Options = nil
	s.Candidates = map[string]calendar.AvailableSlot{}
	s.SelectedSlot = nil
	s.AttendeeName = ""
	s.AttendeeEmail = ""
	s.AttendeePhone = ""
	s.Confirmed = false
}

// Reset starts a fresh booking: booking fields and booked history are
// cleared and intent is asserted.
func (s *BookingSession) Reset() {
	s.ClearBookingFields()
	s.Booked = false
	s.AppointmentID = ""
	s.AppointmentURL = ""
	s.LastConfirmation = ""
	s.IntentAsserted = true
	s.Stage = StageIntentAsserted
}

// SetCandidates replaces the offered slots and drops any selection, since a
// selection must come from the current candidates.
func (s *BookingSession) SetCandidates(day time.Time, slots []calendar.AvailableSlot) {
	s.Options = append([]calendar.AvailableSlot(nil), slots...)
	s.Candidates = SlotAliases(s.Options)
	d := day
	s.PreferredDay = &d
	s.SelectedSlot = nil
	s.Confirmed = false
	s.Stage = StageSlotsListed
}

// EnsureCandidates rebuilds the alias table after decoding.
func (s *BookingSession) EnsureCandidates() {
	if len(s.Candidates) == 0 && len(s.Options) > 0 {
		s.Candidates = SlotAliases(s.Options)
	}
	if s.Candidates == nil {
		s.Candidates = map[string]calendar.AvailableSlot{}
	}
}

func (s *BookingSession) HasCandidates() bool {
	return len(s.Options) > 0
}

// Select sets the selected slot from a candidate label.
func (s *BookingSession) Select(label string) (calendar.AvailableSlot, error) {
	if !s.HasCandidates() {
		return calendar.AvailableSlot{}, ErrNoCandidates
	}
	s.EnsureCandidates()
	slot, ok := s.Candidates[label]
	if !ok {
		return calendar.AvailableSlot{}, fmt.Errorf("%w: %s", ErrUnknownOption, label)
	}
	s.SelectedSlot = &slot
	s.Confirmed = false
	return slot, nil
}

// ClearSelection drops the selected slot and returns to the option list.
func (s *BookingSession) ClearSelection() {
	s.SelectedSlot = nil
	s.Confirmed = false
	if s.Stage > StageSlotsListed {
		s.Stage = StageSlotsListed
	}
}

func (s *BookingSession) HasContactDetails() bool {
	return s.AttendeeName != "" && s.AttendeeEmail != "" && s.AttendeePhone != ""
}

// ReadyToBook reports whether slot, name, email and phone are all set.
func (s *BookingSession) ReadyToBook() bool {
	return s.SelectedSlot != nil && s.HasContactDetails()
}

// MarkBooked records the confirmed booking and clears the collected fields so
// another booking in the same conversation starts clean.
func (s *BookingSession) MarkBooked(conf calendar.Confirmation, message string) {
	s.ClearBookingFields()
	s.Booked = true
	s.Confirmed = true
	s.AppointmentID = conf.ID
	if s.AppointmentID == "" {
		s.AppointmentID = conf.UID
	}
	s.AppointmentURL = conf.URL
	s.LastConfirmation = message
	s.Stage = StageBooked
}

// Validate checks that the selection, booking reference and stage agree.
func (s *BookingSession) Validate() error {
	if s.SelectedSlot != nil {
		found := false
		for _, o := range s.Options {
			if o.Equal(*s.SelectedSlot) {
				found = true
				break
			}
		}
		if !found {
			return ErrSelectedForeign
		}
	}
	if s.Booked && s.AppointmentID == "" && s.AppointmentURL == "" {
		return ErrBookedMissing
	}
	if s.Stage < StageIdle || s.Stage > StageBooked {
		return fmt.Errorf("invalid stage %d", s.Stage)
	}
	return nil
}

// SlotAliases builds the label table for an ordered candidate list: the
// 1-based index, "option N", "option_N" and the slot's stable id.
func SlotAliases(slots []calendar.AvailableSlot) map[string]calendar.AvailableSlot {
	out := make(map[string]calendar.AvailableSlot, len(slots)*4)
	for i, slot := range slots {
		for _, label := range SlotLabels(i+1, slot) {
			out[label] = slot
		}
	}
	return out
}

func SlotLabels(n int, slot calendar.AvailableSlot) []string {
	idx := strconv.Itoa(n)
	return []string{idx, "option " + idx, "option_" + idx, slot.ID()}
}
