package receptionnode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-booking/agent/contract"
	statex "github.com/tanpawarit/chative-booking/agent/state"
)

// ValidateAndSaveState persists the session unless it was discarded while
// the dispatch ran.
func ValidateAndSaveState(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	alive func() bool,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Ended || (alive != nil && !alive()) {
		in.Ended = true
		return in, nil
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return nil, err
	}

	return in, nil
}
