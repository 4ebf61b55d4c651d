// Package event defines the provider-neutral event model that every
// provider adapter normalizes into, and the deterministic identity scheme
// that makes repeated parses of the same log idempotent.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StreamID identifies an independent parent-chain within a single session.
// Main is the top-level conversation; Sidechain covers a spawned sub-agent
// transcript (e.g. Claude Code's Task tool) interleaved in the same file.
type StreamID struct {
	// AgentID is empty for the main stream and set for a sidechain.
	AgentID string
}

// MainStream is the top-level conversation stream.
var MainStream = StreamID{}

// Sidechain returns the stream identity for a spawned sub-agent.
func Sidechain(agentID string) StreamID {
	return StreamID{AgentID: agentID}
}

// IsMain reports whether this is the top-level conversation stream.
func (s StreamID) IsMain() bool {
	return s.AgentID == ""
}

// AgentEvent is one normalized unit of conversation activity.
type AgentEvent struct {
	// ID is the deterministic identity of this event, see DeriveID.
	ID uuid.UUID
	// TraceID groups every event belonging to one session.
	TraceID uuid.UUID
	// ParentID is the previous event in this event's stream, or nil for the
	// first event of that stream.
	ParentID *uuid.UUID
	// Timestamp is the event's recorded time, UTC.
	Timestamp time.Time
	// StreamID scopes ParentID chaining to the main conversation or a
	// specific sidechain.
	StreamID StreamID
	// Payload is the event's typed content.
	Payload EventPayload
	// Metadata carries provider-specific data not modeled elsewhere. The
	// provider parsers store only the producing model's name in it (see
	// EncodeModelMetadata); the raw provider record is not kept.
	Metadata json.RawMessage
}

// PayloadType discriminates EventPayload variants.
type PayloadType string

const (
	PayloadUser         PayloadType = "user"
	PayloadReasoning    PayloadType = "reasoning"
	PayloadMessage      PayloadType = "message"
	PayloadToolCall     PayloadType = "tool_call"
	PayloadToolResult   PayloadType = "tool_result"
	PayloadTokenUsage   PayloadType = "token_usage"
	PayloadNotification PayloadType = "notification"
)

// EventPayload is a tagged union over the seven event content shapes.
// Exactly one field is non-nil; Type reports which one.
type EventPayload struct {
	Type         PayloadType
	User         *UserPayload
	Reasoning    *ReasoningPayload
	Message      *MessagePayload
	ToolCall     *ToolCallPayload
	ToolResult   *ToolResultPayload
	TokenUsage   *TokenUsagePayload
	Notification *NotificationPayload
}

// MarshalJSON encodes an EventPayload as {"type": <tag>, ...fields} so
// external consumers (CLI, MCP, reactors) get a stable discriminated union
// on the wire instead of Go's struct-of-pointers shape.
func (p EventPayload) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PayloadUser:
		return marshalTagged(PayloadUser, p.User)
	case PayloadReasoning:
		return marshalTagged(PayloadReasoning, p.Reasoning)
	case PayloadMessage:
		return marshalTagged(PayloadMessage, p.Message)
	case PayloadToolCall:
		return marshalTagged(PayloadToolCall, p.ToolCall)
	case PayloadToolResult:
		return marshalTagged(PayloadToolResult, p.ToolResult)
	case PayloadTokenUsage:
		return marshalTagged(PayloadTokenUsage, p.TokenUsage)
	case PayloadNotification:
		return marshalTagged(PayloadNotification, p.Notification)
	default:
		return nil, fmt.Errorf("event: unknown payload type %q", p.Type)
	}
}

// marshalTagged merges tag into field's "type" key alongside value's own
// fields, so the wire shape is a flat object rather than a nested one.
func marshalTagged(tag PayloadType, value any) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", tag, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", tag, err)
	}
	taggedValue, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	fields["type"] = taggedValue
	return json.Marshal(fields)
}

// UnmarshalJSON decodes an EventPayload from its {"type": <tag>, ...}
// wire shape, populating only the field matching the tag.
func (p *EventPayload) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type PayloadType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("event: decode payload type: %w", err)
	}

	*p = EventPayload{Type: tag.Type}
	switch tag.Type {
	case PayloadUser:
		p.User = &UserPayload{}
		return json.Unmarshal(data, p.User)
	case PayloadReasoning:
		p.Reasoning = &ReasoningPayload{}
		return json.Unmarshal(data, p.Reasoning)
	case PayloadMessage:
		p.Message = &MessagePayload{}
		return json.Unmarshal(data, p.Message)
	case PayloadToolCall:
		p.ToolCall = &ToolCallPayload{}
		return json.Unmarshal(data, p.ToolCall)
	case PayloadToolResult:
		p.ToolResult = &ToolResultPayload{}
		return json.Unmarshal(data, p.ToolResult)
	case PayloadTokenUsage:
		p.TokenUsage = &TokenUsagePayload{}
		return json.Unmarshal(data, p.TokenUsage)
	case PayloadNotification:
		p.Notification = &NotificationPayload{}
		return json.Unmarshal(data, p.Notification)
	default:
		return fmt.Errorf("event: unknown payload type %q", tag.Type)
	}
}

// UserPayload carries the triggering user input for a turn.
type UserPayload struct {
	Text string
}

// ReasoningPayload carries assistant chain-of-thought/reasoning text.
type ReasoningPayload struct {
	Text string
}

// MessagePayload carries the assistant's final response text for a step.
type MessagePayload struct {
	Text string
}

// ToolResultPayload carries the outcome of a tool execution.
type ToolResultPayload struct {
	// Output is the tool's result text (stdout, JSON, or error message).
	Output string
	// ToolCallID is the logical (not time-series) parent: the ToolCall
	// event this result answers.
	ToolCallID uuid.UUID
	// IsError reports whether the tool execution failed.
	IsError bool
}

// NotificationPayload carries an out-of-band runtime notice (e.g. Gemini
// CLI's "info" messages).
type NotificationPayload struct {
	Level string
	Text  string
}

// TokenUsagePayload is a sidecar event attached to a generation (ToolCall or
// Message) reporting the token cost of producing it. It is excluded from
// context-window reconstruction.
type TokenUsagePayload struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Details      *TokenUsageDetails
}

// TokenUsageDetails carries provider-specific usage breakdowns.
type TokenUsageDetails struct {
	CacheCreationInputTokens *int
	CacheReadInputTokens     *int
	ReasoningOutputTokens    *int
}

// IsGenerationEvent reports whether this event's payload can carry a
// TokenUsage sidecar (ToolCall or Message).
func (e AgentEvent) IsGenerationEvent() bool {
	return e.Payload.Type == PayloadToolCall || e.Payload.Type == PayloadMessage
}

// IsContextEvent reports whether this event belongs in reconstructed
// conversation history. TokenUsage sidecars are cost metadata, not content.
func (e AgentEvent) IsContextEvent() bool {
	return e.Payload.Type != PayloadTokenUsage
}

// modelMetadata is the shape a provider stamps into AgentEvent.Metadata when
// an event's wire record names the model that produced it. It is the one
// piece of provider-specific metadata the runtime coordinator understands,
// since session-wide model tracking needs it regardless of provider.
type modelMetadata struct {
	Model string `json:"model,omitempty"`
}

// EncodeModelMetadata returns the Metadata payload for an event produced by
// model. Returns nil if model is empty, so callers can pass the result
// straight to Builder.BuildAndPush without a branch.
func EncodeModelMetadata(model string) json.RawMessage {
	if model == "" {
		return nil
	}
	encoded, err := json.Marshal(modelMetadata{Model: model})
	if err != nil {
		return nil
	}
	return encoded
}

// DecodeModel extracts the model name stamped by EncodeModelMetadata, if
// any.
func DecodeModel(metadata json.RawMessage) (string, bool) {
	if len(metadata) == 0 {
		return "", false
	}
	var decoded modelMetadata
	if err := json.Unmarshal(metadata, &decoded); err != nil || decoded.Model == "" {
		return "", false
	}
	return decoded.Model, true
}
