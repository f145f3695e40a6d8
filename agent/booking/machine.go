// Package booking drives the turn-by-turn appointment booking dialogue for a
// single conversation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/chative-booking/agent/prompt"
	statex "github.com/tanpawarit/chative-booking/agent/state"
	"github.com/tanpawarit/chative-booking/pkg/calendar"
	logx "github.com/tanpawarit/chative-booking/pkg/logger"
)

type Action string

const (
	ActionAssertIntent   Action = "assert_intent"
	ActionSetNotes       Action = "set_notes"
	ActionListSlots      Action = "list_slots"
	ActionChooseSlot     Action = "choose_slot"
	ActionProvideName    Action = "provide_name"
	ActionProvideEmail   Action = "provide_email"
	ActionProvidePhone   Action = "provide_phone"
	ActionConfirmDetails Action = "confirm_details"
	ActionFinalize       Action = "finalize"
	ActionConfirmNo      Action = "confirm_no"
)

var (
	ErrUnknownAction = errors.New("unknown booking action")
	ErrSessionEnded  = errors.New("booking session ended")
)

// Actions lists every action in dialogue order.
func Actions() []Action {
	return []Action{
		ActionAssertIntent, ActionSetNotes, ActionListSlots, ActionChooseSlot,
		ActionProvideName, ActionProvideEmail, ActionProvidePhone,
		ActionConfirmDetails, ActionFinalize, ActionConfirmNo,
	}
}

// Reply is what the caller should hear after one action.
type Reply struct {
	Message string
	Stage   statex.Stage
	// Paused is set when the action was dropped by the turn gate.
	Paused bool
	// DateAdjusted is set when a past date was moved forward.
	DateAdjusted bool
	// Ended is set when the session was discarded while the action ran; the
	// session was left untouched.
	Ended bool
}

// precondition is the minimum stage an action needs. When met is set it is
// checked instead, since a slot conflict rewinds the stage while keeping the
// contact fields.
type precondition struct {
	stage statex.Stage
	met   func(*statex.BookingSession) bool
	nudge func(prompt.Set) string
}

func (p precondition) satisfied(s *statex.BookingSession) bool {
	if p.met != nil {
		return p.met(s)
	}
	return s.AtLeast(p.stage)
}

var preconditions = map[Action]precondition{
	ActionSetNotes:  {stage: statex.StageIntentAsserted, nudge: func(p prompt.Set) string { return p.NeedIntent }},
	ActionListSlots: {stage: statex.StageIntentAsserted, nudge: func(p prompt.Set) string { return p.NeedIntent }},
	ActionChooseSlot: {
		stage: statex.StageSlotsListed,
		met:   (*statex.BookingSession).HasCandidates,
		nudge: func(p prompt.Set) string { return p.NeedSlots },
	},
	ActionProvideName: {
		stage: statex.StageSlotsListed,
		met:   (*statex.BookingSession).HasCandidates,
		nudge: func(p prompt.Set) string { return p.NeedSlots },
	},
	ActionProvideEmail: {
		stage: statex.StageNameCollected,
		met:   func(s *statex.BookingSession) bool { return s.AttendeeName != "" },
		nudge: func(p prompt.Set) string { return p.NeedName },
	},
	ActionProvidePhone: {
		stage: statex.StageEmailCollected,
		met:   func(s *statex.BookingSession) bool { return s.AttendeeEmail != "" },
		nudge: func(p prompt.Set) string { return p.NeedEmail },
	},
}

// Option customizes a Machine.
type Option func(*Machine)

func WithPrompts(set prompt.Set) Option {
	return func(m *Machine) { m.prompts = set }
}

// WithLocation sets the zone used for "today" and for spoken times.
func WithLocation(loc *time.Location) Option {
	return func(m *Machine) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLiveness sets the check consulted after every calendar call. When it
// reports false the result is discarded and the session is not touched.
func WithLiveness(alive func() bool) Option {
	return func(m *Machine) {
		if alive != nil {
			m.alive = alive
		}
	}
}

// Machine applies named actions to one BookingSession. It is not safe for
// concurrent use; callers serialize actions per session.
type Machine struct {
	session *statex.BookingSession
	cal     calendar.Client
	prompts prompt.Set
	loc     *time.Location
	now     func() time.Time
	alive   func() bool
	logger  zerolog.Logger
}

// New binds a machine to session. cal may be nil, in which case availability
// and booking actions answer with the calendar-missing prompt.
func New(session *statex.BookingSession, cal calendar.Client, opts ...Option) (*Machine, error) {
	if session == nil {
		return nil, statex.ErrNilSessionState
	}
	m := &Machine{
		session: session,
		cal:     cal,
		loc:     time.UTC,
		now:     time.Now,
		alive:   func() bool { return true },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.prompts.Language == "" {
		set, err := prompt.Load(prompt.DefaultLanguage)
		if err != nil {
			return nil, err
		}
		m.prompts = set
	}
	session.EnsureCandidates()
	m.logger = logx.Component("booking").With().Str("session_id", session.SessionID).Logger()
	return m, nil
}

func (m *Machine) Session() *statex.BookingSession { return m.session }

// Dispatch runs the named action with its arguments.
func (m *Machine) Dispatch(ctx context.Context, turnID string, action Action, args map[string]string) (Reply, error) {
	var r Reply
	switch action {
	case ActionAssertIntent:
		r = m.AssertIntent(ctx, turnID)
	case ActionSetNotes:
		r = m.SetNotes(ctx, turnID, args["notes"])
	case ActionListSlots:
		r = m.ListSlots(ctx, turnID, args["day"])
	case ActionChooseSlot:
		r = m.ChooseSlot(ctx, turnID, args["option"])
	case ActionProvideName:
		r = m.ProvideName(ctx, turnID, args["name"])
	case ActionProvideEmail:
		r = m.ProvideEmail(ctx, turnID, args["email"])
	case ActionProvidePhone:
		r = m.ProvidePhone(ctx, turnID, args["phone"])
	case ActionConfirmDetails:
		r = m.ConfirmDetails(ctx, turnID)
	case ActionFinalize:
		r = m.Finalize(ctx, turnID)
	case ActionConfirmNo:
		r = m.ConfirmNo(ctx, turnID)
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if r.Ended {
		return r, ErrSessionEnded
	}
	return r, nil
}

// begin runs the turn gate, the booked lock and the action's precondition.
// A non-nil reply short-circuits the action.
func (m *Machine) begin(turnID string, action Action) *Reply {
	if !m.admit(turnID) {
		m.logger.Debug().Str("action", string(action)).Str("turn_id", m.session.LastTurnID).Msg("turn gate paused action")
		r := m.reply(m.prompts.Pause)
		r.Paused = true
		return &r
	}
	m.logger.Debug().Str("action", string(action)).Stringer("stage", m.session.Stage).Msg("booking action")

	if m.session.Booked {
		switch action {
		case ActionAssertIntent, ActionConfirmDetails, ActionFinalize:
		default:
			r := m.reply(m.prompts.AlreadyBooked)
			return &r
		}
	}

	pc, ok := preconditions[action]
	if !ok || pc.satisfied(m.session) {
		return nil
	}
	r := m.reply(pc.nudge(m.prompts))
	return &r
}

// admit reports whether turnID opens a new turn. An empty turnID draws a
// fresh identifier from the session's action counter.
func (m *Machine) admit(turnID string) bool {
	s := m.session
	if turnID == "" {
		s.ActionSeq++
		turnID = "seq-" + strconv.Itoa(s.ActionSeq)
	}
	if turnID == s.LastTurnID {
		s.CallsThisTurn++
		return false
	}
	s.LastTurnID = turnID
	s.CallsThisTurn = 1
	return true
}

func (m *Machine) reply(msg string) Reply {
	m.session.Touch(m.now())
	return Reply{Message: msg, Stage: m.session.Stage}
}

func (m *Machine) ended() Reply {
	return Reply{Stage: m.session.Stage, Ended: true}
}

func (m *Machine) today() time.Time {
	return midnight(m.now().In(m.loc))
}

func (m *Machine) AssertIntent(_ context.Context, turnID string) Reply {
	if r := m.begin(turnID, ActionAssertIntent); r != nil {
		return *r
	}
	m.session.Reset()
	return m.reply(m.prompts.IntentAck)
}

func (m *Machine) SetNotes(_ context.Context, turnID, notes string) Reply {
	if r := m.begin(turnID, ActionSetNotes); r != nil {
		return *r
	}
	notes = strings.Join(strings.Fields(notes), " ")
	if notes == "" {
		return m.reply(m.prompts.NotesEmpty)
	}
	m.session.Notes = notes
	m.session.Advance(statex.StageNotesCollected)
	return m.reply(m.prompts.NotesAck)
}

// ListSlots resolves day and offers that day's open slots. Calendar failures
// leave the session unchanged.
func (m *Machine) ListSlots(ctx context.Context, turnID, day string) Reply {
	if r := m.begin(turnID, ActionListSlots); r != nil {
		return *r
	}
	if m.cal == nil {
		return m.reply(m.prompts.CalendarMissing)
	}

	today := m.today()
	date, adjusted, err := ParseDay(day, today, m.prompts.DayFirst())
	if err != nil {
		return m.reply(m.prompts.DayUnparsed)
	}
	spokenDay := m.prompts.Day(date, today)

	start := date
	if now := m.now().In(m.loc); now.After(start) {
		start = now
	}
	res := m.cal.ListAvailableSlots(ctx, start.UTC(), date.UTC())
	if !m.alive() {
		m.logger.Warn().Msg("session ended during availability lookup")
		return m.ended()
	}

	var msg string
	switch res.Kind() {
	case calendar.KindCalendarUnavailable:
		m.logger.Error().Err(res.Err).Msg("availability lookup failed")
		msg = m.prompts.CalendarUnavailable
	case calendar.KindInvalidDateRange:
		m.logger.Warn().Err(res.Err).Msg("availability lookup rejected range")
		msg = m.prompts.InvalidRange
	case calendar.KindNoSlotsForDay:
		msg = fmt.Sprintf(m.prompts.NoSlots, spokenDay)
	default:
		slots := make([]calendar.AvailableSlot, len(res.Slots))
		for i, s := range res.Slots {
			slots[i] = s.In(m.loc)
		}
		m.session.SetCandidates(date, slots)
		msg = m.optionList(spokenDay, slots)
	}

	if adjusted {
		msg = fmt.Sprintf(m.prompts.DayAdjusted, spokenDay) + " " + msg
	}
	r := m.reply(msg)
	r.DateAdjusted = adjusted
	return r
}

func (m *Machine) optionList(spokenDay string, slots []calendar.AvailableSlot) string {
	lines := make([]string, 0, len(slots)+2)
	lines = append(lines, fmt.Sprintf(m.prompts.SlotsHeader, spokenDay))
	for i, s := range slots {
		lines = append(lines, fmt.Sprintf(m.prompts.SlotOption, i+1, m.prompts.Time(s.Start())))
	}
	lines = append(lines, m.prompts.SlotsFooter)
	return strings.Join(lines, "\n")
}

func (m *Machine) ChooseSlot(_ context.Context, turnID, option string) Reply {
	if r := m.begin(turnID, ActionChooseSlot); r != nil {
		return *r
	}
	s := m.session
	slot, ok := resolveOption(s.Options, s.Candidates, option, m.loc)
	if !ok {
		return m.reply(m.prompts.SlotUnknown)
	}
	if _, err := s.Select(slot.ID()); err != nil {
		return m.reply(m.prompts.SlotUnknown)
	}
	s.Stage = statex.StageSlotChosen
	m.syncStage()

	when := m.prompts.DayTime(slot.Start().In(m.loc), m.today())
	switch {
	case s.AttendeeName == "":
		return m.reply(fmt.Sprintf(m.prompts.SlotChosen, when))
	case s.HasContactDetails():
		return m.reply(fmt.Sprintf(m.prompts.SlotChosenResume, when))
	default:
		return m.reply(fmt.Sprintf(m.prompts.SlotChosenNext, when, m.nextFieldPrompt()))
	}
}

// syncStage advances past the contact fields already collected.
func (m *Machine) syncStage() {
	s := m.session
	if s.SelectedSlot == nil {
		return
	}
	if s.AttendeeName == "" {
		return
	}
	s.Advance(statex.StageNameCollected)
	if s.AttendeeEmail == "" {
		return
	}
	s.Advance(statex.StageEmailCollected)
	if s.AttendeePhone == "" {
		return
	}
	s.Advance(statex.StageConfirmPending)
}

func (m *Machine) nextFieldPrompt() string {
	s := m.session
	switch {
	case s.SelectedSlot == nil:
		return m.prompts.NeedSlot
	case s.AttendeeName == "":
		return m.prompts.NeedName
	case s.AttendeeEmail == "":
		return m.prompts.NeedEmail
	default:
		return m.prompts.NeedPhone
	}
}

// ProvideName stores the attendee name. With a single offered slot and no
// selection yet, that slot is selected first.
func (m *Machine) ProvideName(_ context.Context, turnID, name string) Reply {
	if r := m.begin(turnID, ActionProvideName); r != nil {
		return *r
	}
	s := m.session
	if s.SelectedSlot == nil {
		if len(s.Options) != 1 {
			return m.reply(m.prompts.NeedSlot)
		}
		if _, err := s.Select(s.Options[0].ID()); err != nil {
			return m.reply(m.prompts.NeedSlot)
		}
		s.Advance(statex.StageSlotChosen)
	}

	clean, ok := normalizeName(name)
	if !ok {
		return m.reply(m.prompts.NameInvalid)
	}
	s.AttendeeName = clean
	s.Advance(statex.StageNameCollected)
	m.syncStage()

	switch {
	case s.AttendeeEmail == "":
		return m.reply(fmt.Sprintf(m.prompts.NameAck, clean))
	case s.AttendeePhone == "":
		return m.reply(m.prompts.NeedPhone)
	default:
		return m.reply(m.readBack())
	}
}

func (m *Machine) ProvideEmail(_ context.Context, turnID, email string) Reply {
	if r := m.begin(turnID, ActionProvideEmail); r != nil {
		return *r
	}
	clean, ok := normalizeEmail(email)
	if !ok {
		return m.reply(m.prompts.EmailInvalid)
	}
	s := m.session
	s.AttendeeEmail = clean
	s.Advance(statex.StageEmailCollected)
	m.syncStage()
	if s.AttendeePhone == "" {
		return m.reply(m.prompts.EmailAck)
	}
	return m.reply(m.readBack())
}

func (m *Machine) ProvidePhone(_ context.Context, turnID, phone string) Reply {
	if r := m.begin(turnID, ActionProvidePhone); r != nil {
		return *r
	}
	clean, ok := normalizePhone(phone)
	if !ok {
		return m.reply(m.prompts.PhoneInvalid)
	}
	s := m.session
	s.AttendeePhone = clean
	s.Advance(statex.StagePhoneCollected)
	m.syncStage()
	return m.reply(m.readBack())
}

// readBack summarizes the pending booking, or lists what is still missing.
func (m *Machine) readBack() string {
	s := m.session
	if !s.ReadyToBook() {
		return m.notReady()
	}
	s.Advance(statex.StageConfirmPending)
	when := m.prompts.DayTime(s.SelectedSlot.Start().In(m.loc), m.today())
	return fmt.Sprintf(m.prompts.PhoneAck, when, s.AttendeeName, s.AttendeeEmail, s.AttendeePhone)
}

func (m *Machine) notReady() string {
	s := m.session
	var missing []string
	if s.SelectedSlot == nil {
		missing = append(missing, m.prompts.Fields.Slot)
	}
	if s.AttendeeName == "" {
		missing = append(missing, m.prompts.Fields.Name)
	}
	if s.AttendeeEmail == "" {
		missing = append(missing, m.prompts.Fields.Email)
	}
	if s.AttendeePhone == "" {
		missing = append(missing, m.prompts.Fields.Phone)
	}
	return fmt.Sprintf(m.prompts.NotReady, m.prompts.List(missing))
}

func (m *Machine) ConfirmDetails(ctx context.Context, turnID string) Reply {
	if r := m.begin(turnID, ActionConfirmDetails); r != nil {
		return *r
	}
	return m.schedule(ctx)
}

// Finalize books the pending appointment. Once booked it repeats the
// original confirmation without calling the calendar again.
func (m *Machine) Finalize(ctx context.Context, turnID string) Reply {
	if r := m.begin(turnID, ActionFinalize); r != nil {
		return *r
	}
	return m.schedule(ctx)
}

func (m *Machine) ConfirmNo(_ context.Context, turnID string) Reply {
	if r := m.begin(turnID, ActionConfirmNo); r != nil {
		return *r
	}
	s := m.session
	s.Confirmed = false
	if s.Stage == statex.StageConfirmPending {
		s.Stage = statex.StagePhoneCollected
	}
	return m.reply(m.prompts.ChangeWhat)
}

func (m *Machine) schedule(ctx context.Context) Reply {
	s := m.session
	if s.Booked {
		return m.reply(s.LastConfirmation)
	}
	if !s.ReadyToBook() {
		s.Confirmed = false
		return m.reply(m.notReady())
	}
	if m.cal == nil {
		return m.reply(m.prompts.CalendarMissing)
	}
	s.Confirmed = true
	slot := *s.SelectedSlot

	if checker, ok := m.cal.(calendar.AvailabilityChecker); ok {
		free, err := checker.IsSlotAvailable(ctx, slot)
		if !m.alive() {
			return m.ended()
		}
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Msg("slot recheck failed, booking anyway")
		case !free:
			return m.slotTaken()
		}
	}

	conf, err := m.cal.ScheduleAppointment(ctx, calendar.BookingRequest{
		Start: slot.Start(),
		Name:  s.AttendeeName,
		Email: s.AttendeeEmail,
		Phone: s.AttendeePhone,
		Notes: s.Notes,
	})
	if !m.alive() {
		m.logger.Warn().Err(err).Str("reference", conf.Reference()).Msg("session ended during booking")
		return m.ended()
	}

	switch {
	case calendar.IsSlotUnavailable(err):
		return m.slotTaken()
	case err != nil:
		m.logger.Error().Err(err).Msg("booking failed")
		s.Confirmed = false
		return m.reply(m.prompts.BookingFailed)
	case !conf.HasReference():
		m.logger.Warn().Msg("booking returned no reference")
		s.Confirmed = false
		return m.reply(m.prompts.BookingUnconfirmed)
	}

	when := m.prompts.DayTime(slot.Start().In(m.loc), m.today())
	msg := fmt.Sprintf(m.prompts.Confirmed, when, s.AttendeeName) + " " +
		fmt.Sprintf(m.prompts.ConfirmedReference, conf.Reference())
	s.MarkBooked(conf, msg)
	m.logger.Info().Str("reference", conf.Reference()).Msg("appointment booked")
	return m.reply(msg)
}

func (m *Machine) slotTaken() Reply {
	m.session.ClearSelection()
	return m.reply(m.prompts.SlotTaken)
}
