package reactor

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/testutil"
)

func tokenUsageEvent(input, output int) *event.AgentEvent {
	return &event.AgentEvent{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TraceID:   uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Timestamp: time.Now().UTC(),
		StreamID:  event.MainStream,
		Payload: event.EventPayload{
			Type: event.PayloadTokenUsage,
			TokenUsage: &event.TokenUsagePayload{
				InputTokens:  input,
				OutputTokens: output,
				TotalTokens:  input + output,
			},
		},
	}
}

func stateWithUsage(model string, input, output int) *SessionState {
	state := NewSessionState("test", time.Now().UTC())
	state.Model = model
	state.Usage = event.TokenUsagePayload{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
	return state
}

func TestTokenUsageMonitorBelowThreshold(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := stateWithUsage("claude-3-5-sonnet-20241022", 10_000, 1_000)
	result := monitor.Handle(Context{Event: tokenUsageEvent(10_000, 1_000), State: state})
	testutil.RequireTrue(t, !result.Warned, "usage well below threshold should not warn")
}

func TestTokenUsageMonitorWarningThreshold(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := stateWithUsage("claude-3-5-sonnet-20241022", 124_000, 7_750)
	result := monitor.Handle(Context{Event: tokenUsageEvent(124_000, 7_750), State: state})
	testutil.RequireTrue(t, result.Warned, "85% usage should warn")
	testutil.RequireStringContains(t, result.Reason, "80", "reason should report the 80% input share")
	testutil.RequireStringContains(t, result.Reason, "warning", "reason should name the warning level")
}

func TestTokenUsageMonitorCriticalThreshold(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := stateWithUsage("claude-3-5-sonnet-20241022", 147_250, 3_875)
	result := monitor.Handle(Context{Event: tokenUsageEvent(147_250, 3_875), State: state})
	testutil.RequireTrue(t, result.Warned, "97.5% usage should warn")
	testutil.RequireStringContains(t, result.Reason, "critical", "reason should name the critical level")
	testutil.RequireStringContains(t, result.Reason, "97.5", "reason should report the total percentage")
}

func TestTokenUsageMonitorNonTokenUsageEventIgnored(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := NewSessionState("test", time.Now().UTC())
	result := monitor.Handle(Context{Event: userEvent(), State: state})
	testutil.RequireTrue(t, !result.Warned, "non token-usage events should not warn")
}

func TestTokenUsageMonitorNoModelInfo(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := stateWithUsage("", 100_000, 10_000)
	result := monitor.Handle(Context{Event: tokenUsageEvent(100_000, 10_000), State: state})
	testutil.RequireTrue(t, !result.Warned, "unknown model should not warn")
}

func TestTokenUsageMonitorCooldownPreventsSpam(t *testing.T) {
	monitor := DefaultTokenUsageMonitor()
	state := stateWithUsage("claude-3-5-sonnet-20241022", 160_000, 10_000)

	first := monitor.Handle(Context{Event: tokenUsageEvent(160_000, 10_000), State: state})
	testutil.RequireTrue(t, first.Warned, "first call should warn")

	second := monitor.Handle(Context{Event: tokenUsageEvent(160_000, 10_000), State: state})
	testutil.RequireTrue(t, !second.Warned, "immediate second call should be suppressed by cooldown")
}
