package receptionnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-booking/agent/contract"
	statex "github.com/tanpawarit/chative-booking/agent/state"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidTool    = errors.New("tool name is empty")
)

type GraphInput struct {
	SessionID string
	TurnID    string
	Tool      string
	Args      map[string]any
}

type GraphOutput struct {
	Reply        string
	Stage        string
	Paused       bool
	DateAdjusted bool
	// Ended reports that the session was discarded while the request ran.
	Ended bool
}

type GraphState struct {
	SessionID string
	Request   contractx.ToolRequest
	Now       time.Time

	Session *statex.BookingSession
	Outcome contractx.BookingOutcome
	Ended   bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	tool := strings.TrimSpace(in.Tool)
	if tool == "" {
		return nil, ErrInvalidTool
	}

	return &GraphState{
		SessionID: sessionID,
		Request: contractx.ToolRequest{
			Tool:   tool,
			Args:   in.Args,
			TurnID: strings.TrimSpace(in.TurnID),
		},
		Now: nowFn().UTC(),
	}, nil
}
