package receptionnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tanpawarit/chative-booking/agent/booking"
	contractx "github.com/tanpawarit/chative-booking/agent/contract"
	"github.com/tanpawarit/chative-booking/agent/prompt"
	"github.com/tanpawarit/chative-booking/agent/tool"
	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

// DispatchDeps is what a dispatch needs beyond the graph state.
type DispatchDeps struct {
	Calendar calendar.Client
	Prompts  prompt.Set
	Location *time.Location
	Execute  tool.Executor
	// Alive reports whether the session is still current.
	Alive func() bool
}

func DispatchTool(
	ctx context.Context,
	in *GraphState,
	deps DispatchDeps,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if deps.Execute == nil {
		return nil, fmt.Errorf("%w: tool executor is nil", contractx.ErrValidation)
	}

	now := in.Now
	machine, err := booking.New(in.Session, deps.Calendar,
		booking.WithPrompts(deps.Prompts),
		booking.WithLocation(deps.Location),
		booking.WithClock(func() time.Time { return now }),
		booking.WithLiveness(deps.Alive),
	)
	if err != nil {
		return nil, err
	}

	res, err := deps.Execute(ctx, machine, in.Request)
	if errors.Is(err, booking.ErrSessionEnded) {
		in.Ended = true
		return in, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, res.Error)
	}

	outcome, ok := res.Result.(contractx.BookingOutcome)
	if !ok {
		return nil, fmt.Errorf("%w: tool=%s returned %T", contractx.ErrSchemaViolation, res.Tool, res.Result)
	}
	in.Outcome = outcome
	return in, nil
}
