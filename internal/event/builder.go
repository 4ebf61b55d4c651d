package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Builder accumulates events for a single session, assigning deterministic
// ids and threading each stream's parent-chain as events are appended.
// One Builder is created per parsed file (or per session, for single-document
// providers); it is not safe for concurrent use.
type Builder struct {
	traceID uuid.UUID

	// streamTips holds the most recently built event id per stream, so the
	// next event on that stream can set ParentID correctly.
	streamTips map[StreamID]uuid.UUID

	// toolCalls maps a provider's own call id to the deterministic event id
	// we minted for it, so a later ToolResult record (which only knows the
	// provider's id) can be linked to the right ToolCall event.
	toolCalls map[string]uuid.UUID
}

// NewBuilder constructs a Builder scoped to one trace (session) id.
func NewBuilder(traceID uuid.UUID) *Builder {
	return &Builder{
		traceID:    traceID,
		streamTips: make(map[StreamID]uuid.UUID),
		toolCalls:  make(map[string]uuid.UUID),
	}
}

// BuildAndPush derives the event id for (baseID, suffix), links it to the
// stream's current tip, appends it to events, and advances the tip. It
// returns the new event's id so callers can register it as a tool call or
// pair a result against it.
func (b *Builder) BuildAndPush(
	events *[]AgentEvent,
	baseID string,
	suffix Suffix,
	ts time.Time,
	payload EventPayload,
	metadata json.RawMessage,
	stream StreamID,
) uuid.UUID {
	id := DeriveID(b.traceID, baseID, suffix)

	var parentID *uuid.UUID
	if tip, ok := b.streamTips[stream]; ok {
		tipCopy := tip
		parentID = &tipCopy
	}

	*events = append(*events, AgentEvent{
		ID:        id,
		TraceID:   b.traceID,
		ParentID:  parentID,
		Timestamp: ts,
		StreamID:  stream,
		Payload:   payload,
		Metadata:  metadata,
	})

	b.streamTips[stream] = id
	return id
}

// RegisterToolCall records the event id minted for a provider's tool-call id.
func (b *Builder) RegisterToolCall(providerCallID string, id uuid.UUID) {
	b.toolCalls[providerCallID] = id
}

// ToolCallID looks up the event id previously registered for a provider's
// tool-call id.
func (b *Builder) ToolCallID(providerCallID string) (uuid.UUID, bool) {
	id, ok := b.toolCalls[providerCallID]
	return id, ok
}

// ResetStream drops a stream's parent tip, starting a fresh chain on its
// next event. Not exercised by any current provider adapter, but kept
// available for a future provider whose sidechains can restart mid-file.
func (b *Builder) ResetStream(stream StreamID) {
	delete(b.streamTips, stream)
}
