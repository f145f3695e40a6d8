package prompt

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed template/*.yaml
var templates embed.FS

const DefaultLanguage = "en"

// Fields names the booking details a caller may still owe.
type Fields struct {
	Slot  string `yaml:"slot"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// Set holds the host's spoken strings and date formatting for one language.
// Strings containing %s / %d are fmt templates.
type Set struct {
	Language          string   `yaml:"language"`
	DateOrder         string   `yaml:"date_order"`
	Weekdays          []string `yaml:"weekdays"`
	Months            []string `yaml:"months"`
	DayLayout         string   `yaml:"day_layout"`
	DayYearLayout     string   `yaml:"day_year_layout"`
	TimeLayout        string   `yaml:"time_layout"`
	DateTime          string   `yaml:"date_time"`
	ListSeparator     string   `yaml:"list_separator"`
	ListLastSeparator string   `yaml:"list_last_separator"`

	Greeting            string `yaml:"greeting"`
	Pause               string `yaml:"pause"`
	NeedIntent          string `yaml:"need_intent"`
	IntentAck           string `yaml:"intent_ack"`
	NotesEmpty          string `yaml:"notes_empty"`
	NotesAck            string `yaml:"notes_ack"`
	DayUnparsed         string `yaml:"day_unparsed"`
	DayAdjusted         string `yaml:"day_adjusted"`
	CalendarMissing     string `yaml:"calendar_missing"`
	CalendarUnavailable string `yaml:"calendar_unavailable"`
	NoSlots             string `yaml:"no_slots"`
	InvalidRange        string `yaml:"invalid_range"`
	SlotsHeader         string `yaml:"slots_header"`
	SlotOption          string `yaml:"slot_option"`
	SlotsFooter         string `yaml:"slots_footer"`
	NeedSlots           string `yaml:"need_slots"`
	SlotUnknown         string `yaml:"slot_unknown"`
	SlotChosen          string `yaml:"slot_chosen"`
	SlotChosenResume    string `yaml:"slot_chosen_resume"`
	SlotChosenNext      string `yaml:"slot_chosen_next"`
	NeedSlot            string `yaml:"need_slot"`
	NameInvalid         string `yaml:"name_invalid"`
	NameAck             string `yaml:"name_ack"`
	NeedName            string `yaml:"need_name"`
	EmailInvalid        string `yaml:"email_invalid"`
	EmailAck            string `yaml:"email_ack"`
	NeedEmail           string `yaml:"need_email"`
	NeedPhone           string `yaml:"need_phone"`
	PhoneInvalid        string `yaml:"phone_invalid"`
	PhoneAck            string `yaml:"phone_ack"`
	NotReady            string `yaml:"not_ready"`
	Fields              Fields `yaml:"fields"`
	Confirmed           string `yaml:"confirmed"`
	ConfirmedReference  string `yaml:"confirmed_reference"`
	SlotTaken           string `yaml:"slot_taken"`
	BookingFailed       string `yaml:"booking_failed"`
	BookingUnconfirmed  string `yaml:"booking_unconfirmed"`
	ChangeWhat          string `yaml:"change_what"`
	AlreadyBooked       string `yaml:"already_booked"`
}

// Load returns the prompt set for lang ("en", "es", or a region form such as
// "es-MX").
func Load(lang string) (Set, error) {
	base := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = DefaultLanguage
	}

	raw, err := templates.ReadFile("template/" + base + ".yaml")
	if err != nil {
		return Set{}, fmt.Errorf("unsupported prompt language %q", lang)
	}
	var set Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return Set{}, fmt.Errorf("decode %s prompts: %w", base, err)
	}
	if err := set.validate(); err != nil {
		return Set{}, fmt.Errorf("%s prompts: %w", base, err)
	}
	return set, nil
}

func MustLoad(lang string) Set {
	set, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return set
}

// Languages lists the embedded prompt sets.
func Languages() []string {
	entries, err := templates.ReadDir("template")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return out
}

func (s Set) validate() error {
	if len(s.Weekdays) != 7 {
		return fmt.Errorf("weekdays must have 7 entries, got %d", len(s.Weekdays))
	}
	if len(s.Months) != 12 {
		return fmt.Errorf("months must have 12 entries, got %d", len(s.Months))
	}
	if s.Pause == "" || s.TimeLayout == "" || s.DayLayout == "" {
		return fmt.Errorf("pause, time_layout and day_layout are required")
	}
	return nil
}

// Day renders t's calendar date, adding the year when it differs from ref's.
func (s Set) Day(t, ref time.Time) string {
	layout := s.DayLayout
	if t.Year() != ref.Year() && s.DayYearLayout != "" {
		layout = s.DayYearLayout
	}
	return strings.NewReplacer(
		"{weekday}", s.Weekdays[int(t.Weekday())],
		"{month}", s.Months[int(t.Month())-1],
		"{day}", fmt.Sprint(t.Day()),
		"{year}", fmt.Sprint(t.Year()),
	).Replace(layout)
}

func (s Set) Time(t time.Time) string {
	return t.Format(s.TimeLayout)
}

func (s Set) DayTime(t, ref time.Time) string {
	return fmt.Sprintf(s.DateTime, s.Day(t, ref), s.Time(t))
}

// List joins items the way the language reads a spoken list.
func (s Set) List(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], s.ListSeparator) + s.ListLastSeparator + items[len(items)-1]
	}
}

// DayFirst reports whether ambiguous numeric dates read day before month.
func (s Set) DayFirst() bool {
	return strings.EqualFold(s.DateOrder, "dmy")
}
