package contract

import (
	"context"

	"github.com/tanpawarit/chative-booking/agent/booking"
)

// ActionRunner applies one named booking action to a live session.
type ActionRunner interface {
	Dispatch(ctx context.Context, turnID string, action booking.Action, args map[string]string) (booking.Reply, error)
}

var _ ActionRunner = (*booking.Machine)(nil)
