package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// AvailableSlot is an offered appointment start plus its duration.
// The zero value is not a usable slot; build one with NewSlot.
type AvailableSlot struct {
	start    time.Time
	duration int
	id       string
}

func NewSlot(start time.Time, durationMinutes int) AvailableSlot {
	return AvailableSlot{
		start:    start,
		duration: durationMinutes,
		id:       slotID(start, durationMinutes),
	}
}

func (s AvailableSlot) Start() time.Time { return s.start }

func (s AvailableSlot) DurationMinutes() int { return s.duration }

func (s AvailableSlot) End() time.Time {
	return s.start.Add(time.Duration(s.duration) * time.Minute)
}

// ID is a short stable reference derived from the start instant and duration.
// Two slots with the same instant and duration share an ID regardless of zone.
func (s AvailableSlot) ID() string { return s.id }

func (s AvailableSlot) IsZero() bool { return s.start.IsZero() }

// Equal compares instant and duration.
func (s AvailableSlot) Equal(o AvailableSlot) bool {
	return s.start.Equal(o.start) && s.duration == o.duration
}

// In returns the same slot expressed in loc.
func (s AvailableSlot) In(loc *time.Location) AvailableSlot {
	out := s
	out.start = s.start.In(loc)
	return out
}

func slotID(start time.Time, duration int) string {
	sum := sha256.Sum256([]byte(start.UTC().Format(time.RFC3339) + "|" + strconv.Itoa(duration)))
	return hex.EncodeToString(sum[:])[:8]
}

type slotJSON struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (s AvailableSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{Start: s.start, DurationMinutes: s.duration})
}

func (s *AvailableSlot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Start.IsZero() {
		return errors.New("slot start is required")
	}
	*s = NewSlot(raw.Start, raw.DurationMinutes)
	return nil
}
