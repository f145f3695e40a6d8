package receptionnode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-booking/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Ended {
		return GraphOutput{Ended: true}, nil
	}

	reply := strings.TrimSpace(in.Outcome.Message)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: tool=%s returned empty message", contractx.ErrValidation, in.Request.Tool)
	}
	return GraphOutput{
		Reply:        reply,
		Stage:        in.Outcome.Stage,
		Paused:       in.Outcome.Paused,
		DateAdjusted: in.Outcome.DateAdjusted,
	}, nil
}
