package contract

// ToolRequest is one named action from the dialogue driver. TurnID groups
// requests that answer the same caller utterance.
type ToolRequest struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	TurnID string         `json:"turn_id,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BookingOutcome is the Result payload of every booking tool.
type BookingOutcome struct {
	Message      string `json:"message"`
	Stage        string `json:"stage"`
	Paused       bool   `json:"paused,omitempty"`
	DateAdjusted bool   `json:"date_adjusted,omitempty"`
}
