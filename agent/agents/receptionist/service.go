package receptionist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	"github.com/tanpawarit/chative-booking/agent/booking"
	nodex "github.com/tanpawarit/chative-booking/agent/nodes"
	"github.com/tanpawarit/chative-booking/agent/prompt"
	statex "github.com/tanpawarit/chative-booking/agent/state"
	"github.com/tanpawarit/chative-booking/agent/tool"
	"github.com/tanpawarit/chative-booking/pkg/calendar"
	logx "github.com/tanpawarit/chative-booking/pkg/logger"
)

var (
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrInvalidTool    = nodex.ErrInvalidTool
	// ErrSessionEnded is returned when End discarded the session while the
	// request was in flight. The result of that request is dropped.
	ErrSessionEnded = booking.ErrSessionEnded
)

// Config is loaded with the BOOKING prefix. An empty TimeZone follows the
// calendar's zone, or UTC when the calendar reports none.
type Config struct {
	Language string `envconfig:"LANGUAGE" default:"en"`
	TimeZone string `envconfig:"TIME_ZONE"`
}

// locator is implemented by calendars bound to a local zone.
type locator interface {
	Location() *time.Location
}

type Request struct {
	SessionID string
	TurnID    string
	Tool      string
	Args      map[string]any
}

type Response struct {
	Reply        string
	Stage        string
	Paused       bool
	DateAdjusted bool
}

// Service runs booking tool calls against persisted sessions. Calls for the
// same session are serialized.
type Service struct {
	store   statex.Store
	cal     calendar.Client
	prompts prompt.Set
	loc     *time.Location
	execute tool.Executor

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	counter  uint64
}

// session is held only while calls for it are in flight. End bumps the
// token so those calls see themselves as stale.
type session struct {
	mu    sync.Mutex
	token uint64
	refs  int
}

// New builds a receptionist. cal may be nil; availability and booking then
// answer with the calendar-missing prompt.
func New(store statex.Store, cal calendar.Client, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}

	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = prompt.DefaultLanguage
	}
	prompts, err := prompt.Load(lang)
	if err != nil {
		return nil, err
	}

	loc, err := resolveLocation(cfg.TimeZone, cal)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:    store,
		cal:      cal,
		prompts:  prompts,
		loc:      loc,
		execute:  tool.NewExecutor(),
		now:      time.Now,
		logger:   logx.Component("receptionist"),
		sessions: map[string]*session{},
	}

	graphRunner, err := s.compileHandleToolGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// Handle runs one tool call for req.SessionID, creating the session on
// first use.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return Response{}, ErrInvalidSession
	}

	sess := s.acquire(sessionID)
	defer s.release(sessionID, sess)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	token := s.tokenOf(sess)
	alive := func() bool { return s.current(sess, token) }
	out, err := s.graphRunner.Invoke(withRun(ctx, run{alive: alive}), nodex.GraphInput{
		SessionID: sessionID,
		TurnID:    req.TurnID,
		Tool:      req.Tool,
		Args:      req.Args,
	})
	// End may land between the save node's check and the write; whatever was
	// written after it is removed again.
	if !alive() {
		s.discard(ctx, sessionID)
		s.logger.Info().Str("session_id", sessionID).Str("tool", req.Tool).Msg("session ended during tool call; result dropped")
		return Response{}, ErrSessionEnded
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Str("tool", req.Tool).Msg("tool call failed")
		return Response{}, err
	}
	if out.Ended {
		return Response{}, ErrSessionEnded
	}

	return Response{
		Reply:        out.Reply,
		Stage:        out.Stage,
		Paused:       out.Paused,
		DateAdjusted: out.DateAdjusted,
	}, nil
}

// End discards the session. A call still in flight for it completes
// without leaving state behind.
func (s *Service) End(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		s.counter++
		sess.token = s.counter
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	s.logger.Info().Str("session_id", sessionID).Msg("session ended")
	return nil
}

func (s *Service) discard(ctx context.Context, sessionID string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), sessionID); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to discard ended session")
	}
}

func (s *Service) acquire(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.counter++
		sess = &session{token: s.counter}
		s.sessions[sessionID] = sess
	}
	sess.refs++
	return sess
}

func (s *Service) release(sessionID string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.refs--
	if sess.refs == 0 && s.sessions[sessionID] == sess {
		delete(s.sessions, sessionID)
	}
}

func (s *Service) tokenOf(sess *session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.token
}

func (s *Service) current(sess *session, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.token == token
}

// resolveLocation picks the zone used for "today" and spoken times. It must
// agree with the calendar's zone, which pads availability queries to the
// end of the local day.
func resolveLocation(zone string, cal calendar.Client) (*time.Location, error) {
	var calLoc *time.Location
	if l, ok := cal.(locator); ok {
		calLoc = l.Location()
	}

	zone = strings.TrimSpace(zone)
	if zone == "" {
		if calLoc != nil {
			return calLoc, nil
		}
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	if calLoc != nil && calLoc.String() != loc.String() {
		return nil, fmt.Errorf("time zone %q does not match calendar time zone %q", loc, calLoc)
	}
	return loc, nil
}
