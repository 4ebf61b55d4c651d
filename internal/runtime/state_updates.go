package runtime

import "github.com/traceboard/traceboard/internal/event"

// StateUpdates is the pure projection of one event onto session state: no
// I/O, no mutation, just what changed. Coordinator folds this into its
// running SessionState; keeping the extraction separate from the fold
// makes both independently testable.
type StateUpdates struct {
	// Model is the model name stamped in the event's metadata, if any.
	Model string
	// IsNewTurn reports whether this event starts a new turn (a User
	// event), which resets the running error streak.
	IsNewTurn bool
	// HasToolResult reports whether this event carries a ToolResult,
	// since only ToolResult events participate in error-streak tracking.
	HasToolResult bool
	// IsError is only meaningful when HasToolResult is true.
	IsError bool
	// Usage is the token usage this event reports, if it's a TokenUsage
	// event. Each report already reflects the cumulative context-window
	// size at that point, so applying it means overwriting the running
	// state's usage, not adding to it.
	Usage *event.TokenUsagePayload
}

// ExtractStateUpdates projects evt's effect on a SessionState.
func ExtractStateUpdates(evt *event.AgentEvent) StateUpdates {
	var updates StateUpdates

	switch evt.Payload.Type {
	case event.PayloadUser:
		updates.IsNewTurn = true
	case event.PayloadTokenUsage:
		if evt.Payload.TokenUsage != nil {
			usage := *evt.Payload.TokenUsage
			updates.Usage = &usage
		}
	case event.PayloadToolResult:
		updates.HasToolResult = true
		if evt.Payload.ToolResult != nil {
			updates.IsError = evt.Payload.ToolResult.IsError
		}
	}

	if model, ok := event.DecodeModel(evt.Metadata); ok {
		updates.Model = model
	}

	return updates
}
