package event

import "github.com/pair-run/pair/pkg/types"

// PhaseChangedData is the data for phase.changed events.
type PhaseChangedData struct {
	Previous types.Phase `json:"previous"`
	Current  types.Phase `json:"current"`
}

// PlanReadyData is the data for plan.ready events, emitted once the
// Architect produces its plan.
type PlanReadyData struct {
	Plan string `json:"plan"`
}

// MessageReceivedData is the data for message.received events, emitted
// whenever a Driver or Navigator session produces a Message.
type MessageReceivedData struct {
	Message types.Message `json:"message"`
}

// ToolCallAttemptedData is the data for tool_call.attempted events.
type ToolCallAttemptedData struct {
	ToolCall types.ToolCall `json:"toolCall"`
}

// PermissionRequestedData is the data for permission.requested events,
// emitted when the broker forwards a gated tool call to the Navigator.
type PermissionRequestedData struct {
	Request types.PermissionRequest `json:"request"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	RequestID string                 `json:"requestId"`
	Result    types.PermissionResult `json:"result"`
}

// DriverCommandReceivedData is the data for driver_command.received events.
type DriverCommandReceivedData struct {
	Command types.DriverCommand `json:"command"`
}

// NavigatorCommandReceivedData is the data for
// navigator_command.received events.
type NavigatorCommandReceivedData struct {
	Command types.NavigatorCommand `json:"command"`
}

// RunCompletedData is the data for run.completed events.
type RunCompletedData struct {
	Summary string `json:"summary"`
}

// RunFailedData is the data for run.failed events.
type RunFailedData struct {
	Reason string `json:"reason"`
}
