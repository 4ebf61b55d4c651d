// Package assembler folds a flat, time-ordered slice of normalized events
// into the hierarchical session/turn/step structure a viewer or reactor
// actually wants to read: a session is a sequence of turns, each turn is a
// sequence of steps, and each step bundles the reasoning/message/tool
// activity that happened together before the assistant moved on.
package assembler

import (
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
)

// Session is one fully assembled conversation: every turn it contains, in
// order, plus aggregate stats.
type Session struct {
	SessionID uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
	Turns     []Turn
	Stats     SessionStats
}

// SessionStats summarizes a whole session.
type SessionStats struct {
	TotalTurns      int
	DurationSeconds int64
	TotalTokens     int64
}

// Turn is everything that happened in response to one user message: zero or
// more steps of reasoning/messages/tool activity.
type Turn struct {
	ID        uuid.UUID
	Timestamp time.Time
	User      UserMessage
	Steps     []Step
	Stats     TurnStats
}

// TurnStats summarizes one turn.
type TurnStats struct {
	DurationMS  int64
	StepCount   int
	TotalTokens int
}

// UserMessage is the triggering input for a turn.
type UserMessage struct {
	EventID uuid.UUID
	Content string
}

// Step is one unit of assistant activity within a turn: at most one
// reasoning block, at most one message, any number of tool executions, and
// an optional token usage sidecar.
type Step struct {
	ID        uuid.UUID
	Timestamp time.Time
	Reasoning *ReasoningBlock
	Message   *MessageBlock
	Tools     []ToolExecution
	Usage     *event.TokenUsagePayload
	IsFailed  bool
}

// ReasoningBlock carries one step's chain-of-thought content.
type ReasoningBlock struct {
	EventID uuid.UUID
	Content string
}

// MessageBlock carries one step's assistant-visible reply text.
type MessageBlock struct {
	EventID uuid.UUID
	Content string
}

// ToolCallBlock is the request half of a tool execution.
type ToolCallBlock struct {
	EventID        uuid.UUID
	Timestamp      time.Time
	ProviderCallID string
	Content        event.ToolCallPayload
}

// ToolResultBlock is the response half of a tool execution.
type ToolResultBlock struct {
	EventID    uuid.UUID
	Timestamp  time.Time
	ToolCallID uuid.UUID
	Content    event.ToolResultPayload
}

// ToolExecution pairs a tool call with its (possibly still pending) result.
type ToolExecution struct {
	Call       ToolCallBlock
	Result     *ToolResultBlock
	DurationMS *int64
	IsError    bool
}
