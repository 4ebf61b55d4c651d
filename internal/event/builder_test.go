package event

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/testutil"
)

func TestBuilderChain(t *testing.T) {
	traceID := uuid.New()
	builder := NewBuilder(traceID)
	var events []AgentEvent

	event1ID := builder.BuildAndPush(&events, "test-id-1", SuffixUser, time.Now(), EventPayload{
		Type: PayloadUser,
		User: &UserPayload{Text: "Hello"},
	}, nil, MainStream)
	testutil.RequireTrue(t, events[0].ParentID == nil, "first event should have no parent")
	testutil.RequireEqual(t, events[0].TraceID, traceID, "trace id mismatch")
	testutil.RequireEqual(t, events[0].StreamID, MainStream, "stream id mismatch")

	event2ID := builder.BuildAndPush(&events, "test-id-2", SuffixMessage, time.Now(), EventPayload{
		Type:    PayloadMessage,
		Message: &MessagePayload{Text: "Hi"},
	}, nil, MainStream)
	testutil.RequireTrue(t, events[1].ParentID != nil && *events[1].ParentID == event1ID, "second event parent mismatch")

	builder.BuildAndPush(&events, "test-id-3", SuffixToolCall, time.Now(), EventPayload{
		Type: PayloadToolCall,
		ToolCall: &ToolCallPayload{
			Variant: ToolCallExecute,
			Name:    "bash",
			Execute: &ExecuteArgs{},
		},
	}, nil, MainStream)
	testutil.RequireTrue(t, events[2].ParentID != nil && *events[2].ParentID == event2ID, "third event parent mismatch")
}

func TestMultiStreamChains(t *testing.T) {
	traceID := uuid.New()
	builder := NewBuilder(traceID)
	var events []AgentEvent

	main1ID := builder.BuildAndPush(&events, "main-1", SuffixUser, time.Now(), EventPayload{
		Type: PayloadUser,
		User: &UserPayload{Text: "Main"},
	}, nil, MainStream)

	builder.BuildAndPush(&events, "side-1", SuffixUser, time.Now(), EventPayload{
		Type: PayloadUser,
		User: &UserPayload{Text: "Sidechain"},
	}, nil, Sidechain("test123"))

	builder.BuildAndPush(&events, "main-2", SuffixMessage, time.Now(), EventPayload{
		Type:    PayloadMessage,
		Message: &MessagePayload{Text: "Main 2"},
	}, nil, MainStream)

	testutil.RequireTrue(t, events[0].ParentID == nil, "main1 should have no parent")
	testutil.RequireTrue(t, events[2].ParentID != nil && *events[2].ParentID == main1ID, "main2 should chain from main1")
	testutil.RequireTrue(t, events[1].ParentID == nil, "sidechain event should have no parent in its own chain")
}

func TestToolMap(t *testing.T) {
	builder := NewBuilder(uuid.New())
	toolUUID := uuid.New()

	builder.RegisterToolCall("gemini-tool-123", toolUUID)

	got, ok := builder.ToolCallID("gemini-tool-123")
	testutil.RequireTrue(t, ok, "expected tool call id to be registered")
	testutil.RequireEqual(t, got, toolUUID, "tool call id mismatch")

	_, ok = builder.ToolCallID("nonexistent")
	testutil.RequireTrue(t, !ok, "expected nonexistent tool call id to be absent")
}

func TestDeriveIDDeterministic(t *testing.T) {
	traceID := uuid.New()
	a := DeriveID(traceID, "base-1", SuffixMessage)
	b := DeriveID(traceID, "base-1", SuffixMessage)
	testutil.RequireEqual(t, a, b, "DeriveID must be deterministic for identical inputs")

	c := DeriveID(traceID, "base-1", SuffixToolCall)
	testutil.RequireTrue(t, a != c, "different suffixes must yield different ids")

	other := uuid.New()
	d := DeriveID(other, "base-1", SuffixMessage)
	testutil.RequireTrue(t, a != d, "different trace ids must yield different ids")
}
