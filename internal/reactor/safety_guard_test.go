package reactor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/testutil"
)

func toolCallEvent(path string) *event.AgentEvent {
	args, _ := json.Marshal(map[string]string{"path": path})
	return &event.AgentEvent{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TraceID:   uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Timestamp: time.Now().UTC(),
		StreamID:  event.MainStream,
		Payload: event.EventPayload{
			Type: event.PayloadToolCall,
			ToolCall: &event.ToolCallPayload{
				Variant: event.ToolCallGeneric,
				Name:    "Read",
				Generic: args,
			},
		},
	}
}

func userEvent() *event.AgentEvent {
	return &event.AgentEvent{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000003"),
		TraceID:   uuid.MustParse("00000000-0000-0000-0000-000000000004"),
		Timestamp: time.Now().UTC(),
		StreamID:  event.MainStream,
		Payload: event.EventPayload{
			Type: event.PayloadUser,
			User: &event.UserPayload{Text: "test"},
		},
	}
}

func guardCtx(evt *event.AgentEvent) Context {
	return Context{Event: evt, State: NewSessionState("test", time.Now().UTC())}
}

func TestSafetyGuardSafePathAllowed(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/Users/test/project/file.rs")))
	testutil.RequireTrue(t, !result.Warned, "safe path should not warn")
}

func TestSafetyGuardPathTraversalDetected(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("../../../etc/passwd")))
	testutil.RequireTrue(t, result.Warned, "path traversal should warn")
	testutil.RequireStringContains(t, result.Reason, "Path traversal", "reason")
}

func TestSafetyGuardSystemDirectoryDetected(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/etc/passwd")))
	testutil.RequireTrue(t, result.Warned, "system directory should warn")
	testutil.RequireStringContains(t, result.Reason, "System directory", "reason")
}

func TestSafetyGuardRootPathDetected(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/")))
	testutil.RequireTrue(t, result.Warned, "root path should warn")
	testutil.RequireStringContains(t, result.Reason, "System directory", "reason")
}

func TestSafetyGuardAbsolutePathOutsideUserDetected(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/opt/secret/file")))
	testutil.RequireTrue(t, result.Warned, "path outside user directory should warn")
	testutil.RequireStringContains(t, result.Reason, "outside user directory", "reason")
}

func TestSafetyGuardNonToolCallEventIgnored(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(userEvent()))
	testutil.RequireTrue(t, !result.Warned, "non tool-call event should not warn")
}

func TestSafetyGuardRelativePathAllowed(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("src/main.rs")))
	testutil.RequireTrue(t, !result.Warned, "relative path should not warn")
}

func TestSafetyGuardDotsInFilenameAllowed(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/Users/test/reactor...md")))
	testutil.RequireTrue(t, !result.Warned, "consecutive dots in a filename are not traversal")
}

func TestSafetyGuardTruncatedDisplayStringAllowed(t *testing.T) {
	guard := NewSafetyGuard()
	result := guard.Handle(guardCtx(toolCallEvent("/Users/zawakin/go/src/github.com/lanegrid/agtrace/docs/react...")))
	testutil.RequireTrue(t, !result.Warned, "a truncated display string ending in ... is not traversal")
}
