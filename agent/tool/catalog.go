package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/chative-booking/agent/booking"
	contractx "github.com/tanpawarit/chative-booking/agent/contract"
)

const (
	ToolAssertIntent   = "booking.assert_intent"
	ToolSetNotes       = "booking.set_notes"
	ToolListSlots      = "booking.list_slots"
	ToolChooseSlot     = "booking.choose_slot"
	ToolProvideName    = "booking.provide_name"
	ToolProvideEmail   = "booking.provide_email"
	ToolProvidePhone   = "booking.provide_phone"
	ToolConfirmDetails = "booking.confirm_details"
	ToolFinalize       = "booking.finalize"
	ToolConfirmNo      = "booking.confirm_no"
)

const namespace = "booking."

// Executor runs one tool request against a live booking session.
type Executor func(ctx context.Context, runner contractx.ActionRunner, req contractx.ToolRequest) (contractx.ToolResult, error)

// Build returns the tool catalog offered to the dialogue driver and the
// executor that serves it.
func Build() ([]*schema.ToolInfo, Executor) {
	return Infos(), NewExecutor()
}

// ActionFor maps a tool name to its booking action.
func ActionFor(tool string) (booking.Action, bool) {
	name, ok := strings.CutPrefix(strings.TrimSpace(tool), namespace)
	if !ok {
		return "", false
	}
	for _, a := range booking.Actions() {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

func NewExecutor() Executor {
	fallback := DefaultExecutor()
	return func(ctx context.Context, runner contractx.ActionRunner, req contractx.ToolRequest) (contractx.ToolResult, error) {
		action, ok := ActionFor(req.Tool)
		if !ok {
			return fallback(ctx, runner, req)
		}
		if runner == nil {
			return contractx.ToolResult{}, fmt.Errorf("%w: action runner is nil", contractx.ErrValidation)
		}

		args, err := stringArgs(req.Args)
		if err != nil {
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}, nil
		}

		reply, err := runner.Dispatch(ctx, req.TurnID, action, args)
		if err != nil {
			return contractx.ToolResult{}, err
		}
		return contractx.ToolResult{
			Tool: req.Tool,
			Result: contractx.BookingOutcome{
				Message:      reply.Message,
				Stage:        reply.Stage.String(),
				Paused:       reply.Paused,
				DateAdjusted: reply.DateAdjusted,
			},
		}, nil
	}
}

func DefaultExecutor() Executor {
	return func(_ context.Context, _ contractx.ActionRunner, req contractx.ToolRequest) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  req.Tool,
			Error: fmt.Sprintf("tool=%s is unavailable", req.Tool),
		}, nil
	}
}

// stringArgs flattens scalar arguments to strings. Drivers often send an
// option number as a JSON number.
func stringArgs(args map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case float64:
			out[k] = fmt.Sprintf("%g", val)
		case int, int32, int64:
			out[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("%s must be a string", k)
		}
	}
	return out, nil
}

func stringParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: true}
}

func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolAssertIntent,
			Desc: "Start a new appointment booking. Call when the caller says they want to book.",
		},
		{
			Name: ToolSetNotes,
			Desc: "Record what the appointment is about.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"notes": stringParam("Short reason for the visit, in the caller's words"),
			}),
		},
		{
			Name: ToolListSlots,
			Desc: "Look up open appointment times for one day and read them as numbered options.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"day": stringParam("Day as the caller said it, e.g. tomorrow, Friday, March 3rd, 2025-01-15"),
			}),
		},
		{
			Name: ToolChooseSlot,
			Desc: "Select one of the offered options.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"option": stringParam("Option number, option id, or spoken time such as 3pm"),
			}),
		},
		{
			Name: ToolProvideName,
			Desc: "Record the attendee's full name.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name": stringParam("Full name"),
			}),
		},
		{
			Name: ToolProvideEmail,
			Desc: "Record the attendee's email address.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"email": stringParam("Email address, typed or spoken"),
			}),
		},
		{
			Name: ToolProvidePhone,
			Desc: "Record the attendee's phone number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone": stringParam("Phone number including area code"),
			}),
		},
		{
			Name: ToolConfirmDetails,
			Desc: "The caller confirmed the read-back details; book the appointment.",
		},
		{
			Name: ToolFinalize,
			Desc: "Book the appointment, or repeat the confirmation if it is already booked.",
		},
		{
			Name: ToolConfirmNo,
			Desc: "The caller rejected the read-back details and wants to change something.",
		},
	}
}
