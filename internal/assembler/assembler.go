package assembler

import (
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
)

// Assemble folds a time-ordered slice of events from a single session into
// its turn/step structure. Events must already be sorted by timestamp
// (stream sorts its merged events; scan passes one file's events in file
// order); Assemble does not sort.
//
// Unlike the upstream turn builder this is ported from, a turn consisting
// only of a User event and no further assistant activity is kept rather
// than discarded — an in-flight turn the agent hasn't responded to yet is
// still a real turn a live viewer needs to show.
func Assemble(events []event.AgentEvent) *Session {
	if len(events) == 0 {
		return nil
	}

	sessionID := events[0].TraceID
	startTime := events[0].Timestamp
	endTime := events[len(events)-1].Timestamp

	turns := buildTurns(events)
	stats := calculateSessionStats(turns, startTime, endTime)

	return &Session{
		SessionID: sessionID,
		StartTime: startTime,
		EndTime:   &endTime,
		Turns:     turns,
		Stats:     stats,
	}
}

func buildTurns(events []event.AgentEvent) []Turn {
	turns := make([]Turn, 0)
	var current *turnBuilder

	for i := range events {
		evt := &events[i]
		if evt.Payload.Type == event.PayloadUser {
			if current != nil {
				if turn, ok := current.build(); ok {
					turns = append(turns, turn)
				}
			}
			current = newTurnBuilder(evt.ID, evt.Timestamp, UserMessage{
				EventID: evt.ID,
				Content: evt.Payload.User.Text,
			})
			continue
		}
		if current != nil {
			current.addEvent(evt)
		}
	}

	if current != nil {
		if turn, ok := current.build(); ok {
			turns = append(turns, turn)
		}
	}

	return turns
}

// turnBuilder accumulates events belonging to a single turn.
type turnBuilder struct {
	id        uuid.UUID
	timestamp time.Time
	user      UserMessage

	steps       []stepBuilder
	currentStep stepBuilder

	// pendingCalls maps a ToolCall event ID to (step index, call index
	// within that step's Tools slice), so the matching ToolResult can find
	// and complete it even if it arrives after the owning step has already
	// been closed out by startNewStep.
	pendingCalls map[uuid.UUID]pendingCall
}

type pendingCall struct {
	stepIdx int
	callIdx int
}

func newTurnBuilder(id uuid.UUID, timestamp time.Time, user UserMessage) *turnBuilder {
	return &turnBuilder{
		id:           id,
		timestamp:    timestamp,
		user:         user,
		steps:        make([]stepBuilder, 0),
		currentStep:  newStepBuilder(timestamp),
		pendingCalls: make(map[uuid.UUID]pendingCall),
	}
}

func (tb *turnBuilder) addEvent(evt *event.AgentEvent) {
	switch evt.Payload.Type {
	case event.PayloadReasoning:
		tb.ensureNewStepIfNeeded(evt.Timestamp)

		tb.currentStep.id = &evt.ID
		tb.currentStep.reasoning = &ReasoningBlock{
			EventID: evt.ID,
			Content: evt.Payload.Reasoning.Text,
		}

	case event.PayloadMessage:
		if tb.currentStep.message != nil {
			tb.startNewStep(evt.Timestamp)
		}
		if tb.currentStep.id == nil {
			tb.currentStep.id = &evt.ID
		}
		tb.currentStep.message = &MessageBlock{
			EventID: evt.ID,
			Content: evt.Payload.Message.Text,
		}

	case event.PayloadToolCall:
		for _, existing := range tb.currentStep.toolExecutions {
			if existing.Call.EventID == evt.ID {
				// Re-parse of an overlapping read surfaced the same call
				// twice; keep the first copy.
				return
			}
		}

		if tb.currentStep.id == nil {
			tb.currentStep.id = &evt.ID
		}

		callBlock := ToolCallBlock{
			EventID:        evt.ID,
			Timestamp:      evt.Timestamp,
			ProviderCallID: evt.Payload.ToolCall.ProviderCallID,
			Content:        *evt.Payload.ToolCall,
		}

		callIdx := len(tb.currentStep.toolExecutions)
		tb.currentStep.toolExecutions = append(tb.currentStep.toolExecutions, ToolExecution{
			Call: callBlock,
		})

		tb.pendingCalls[evt.ID] = pendingCall{stepIdx: len(tb.steps), callIdx: callIdx}

	case event.PayloadToolResult:
		toolCallID := evt.Payload.ToolResult.ToolCallID
		resultBlock := ToolResultBlock{
			EventID:    evt.ID,
			Timestamp:  evt.Timestamp,
			ToolCallID: toolCallID,
			Content:    *evt.Payload.ToolResult,
		}

		if pending, ok := tb.pendingCalls[toolCallID]; ok {
			var target *stepBuilder
			if pending.stepIdx < len(tb.steps) {
				target = &tb.steps[pending.stepIdx]
			} else {
				target = &tb.currentStep
			}

			if pending.callIdx < len(target.toolExecutions) {
				exec := &target.toolExecutions[pending.callIdx]
				duration := evt.Timestamp.Sub(exec.Call.Timestamp).Milliseconds()

				exec.Result = &resultBlock
				exec.DurationMS = &duration
				exec.IsError = evt.Payload.ToolResult.IsError
			}

			delete(tb.pendingCalls, toolCallID)
		}

	case event.PayloadTokenUsage:
		if tb.currentStep.usage != nil {
			tb.currentStep.usage.InputTokens += evt.Payload.TokenUsage.InputTokens
			tb.currentStep.usage.OutputTokens += evt.Payload.TokenUsage.OutputTokens
			tb.currentStep.usage.TotalTokens += evt.Payload.TokenUsage.TotalTokens
		} else {
			usage := *evt.Payload.TokenUsage
			tb.currentStep.usage = &usage
		}

	case event.PayloadNotification:
		// Notifications don't belong to a turn's reasoning/message/tool
		// structure; they surface at the session level instead.

	case event.PayloadUser:
		// buildTurns never forwards a User event into addEvent; it always
		// starts a fresh turnBuilder instead.
		panic("assembler: unreachable User payload inside turnBuilder.addEvent")
	}
}

func (tb *turnBuilder) ensureNewStepIfNeeded(timestamp time.Time) {
	if tb.currentStep.reasoning != nil {
		tb.startNewStep(timestamp)
	}
}

func (tb *turnBuilder) startNewStep(timestamp time.Time) {
	if tb.currentStep.isEmpty() {
		return
	}
	completed := tb.currentStep
	tb.steps = append(tb.steps, completed)
	tb.currentStep = newStepBuilder(timestamp)
}

// build finalizes the turn. ok is always true: even a turn with no
// assistant-side steps is kept (see Assemble's doc comment).
func (tb *turnBuilder) build() (Turn, bool) {
	if !tb.currentStep.isEmpty() {
		tb.steps = append(tb.steps, tb.currentStep)
	}

	completedSteps := make([]Step, 0, len(tb.steps))
	for _, sb := range tb.steps {
		completedSteps = append(completedSteps, sb.build())
	}

	stats := calculateTurnStats(completedSteps, tb.timestamp)

	return Turn{
		ID:        tb.id,
		Timestamp: tb.timestamp,
		User:      tb.user,
		Steps:     completedSteps,
		Stats:     stats,
	}, true
}

// stepBuilder accumulates the content of a single step.
type stepBuilder struct {
	id             *uuid.UUID
	timestamp      time.Time
	reasoning      *ReasoningBlock
	message        *MessageBlock
	toolExecutions []ToolExecution
	usage          *event.TokenUsagePayload
}

func newStepBuilder(timestamp time.Time) stepBuilder {
	return stepBuilder{timestamp: timestamp, toolExecutions: make([]ToolExecution, 0)}
}

func (sb *stepBuilder) isEmpty() bool {
	return sb.reasoning == nil && sb.message == nil && len(sb.toolExecutions) == 0 && sb.usage == nil
}

func (sb *stepBuilder) build() Step {
	id := uuid.New()
	if sb.id != nil {
		id = *sb.id
	}

	isFailed := false
	for _, t := range sb.toolExecutions {
		if t.IsError {
			isFailed = true
			break
		}
	}

	return Step{
		ID:        id,
		Timestamp: sb.timestamp,
		Reasoning: sb.reasoning,
		Message:   sb.message,
		Tools:     sb.toolExecutions,
		Usage:     sb.usage,
		IsFailed:  isFailed,
	}
}

func calculateSessionStats(turns []Turn, startTime, endTime time.Time) SessionStats {
	var totalTokens int64
	for _, t := range turns {
		totalTokens += int64(t.Stats.TotalTokens)
	}

	return SessionStats{
		TotalTurns:      len(turns),
		DurationSeconds: int64(endTime.Sub(startTime).Seconds()),
		TotalTokens:     totalTokens,
	}
}

func calculateTurnStats(steps []Step, turnStart time.Time) TurnStats {
	var durationMS int64
	if len(steps) > 0 {
		last := steps[len(steps)-1]
		durationMS = last.Timestamp.Sub(turnStart).Milliseconds()
	}

	var totalTokens int
	for _, s := range steps {
		if s.Usage != nil {
			totalTokens += s.Usage.TotalTokens
		}
	}

	return TurnStats{
		DurationMS:  durationMS,
		StepCount:   len(steps),
		TotalTokens: totalTokens,
	}
}
