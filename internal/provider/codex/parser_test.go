package codex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/testutil"
)

func TestParseFileBuildsTurnWithToolCallAndUsage(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		`{"timestamp":"2025-01-01T00:00:00Z","type":"session_meta","payload":{"id":"sess-1","timestamp":"2025-01-01T00:00:00Z","cwd":"/repo","originator":"cli","cli_version":"1.0.0","source":"cli"}}`,
		`{"timestamp":"2025-01-01T00:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"list files"}]}}`,
		`{"timestamp":"2025-01-01T00:00:02Z","type":"response_item","payload":{"type":"function_call","name":"shell","arguments":"{\"command\":[\"ls\"]}","call_id":"call_1"}}`,
		`{"timestamp":"2025-01-01T00:00:03Z","type":"response_item","payload":{"type":"function_call_output","call_id":"call_1","output":"a.txt\nb.txt"}}`,
		`{"timestamp":"2025-01-01T00:00:04Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"done"}]}}`,
		`{"timestamp":"2025-01-01T00:00:05Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":100,"cached_input_tokens":10,"output_tokens":20,"reasoning_output_tokens":0,"total_tokens":120},"last_token_usage":{"input_tokens":50,"cached_input_tokens":5,"output_tokens":10,"reasoning_output_tokens":0,"total_tokens":60}}}}`,
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	path := filepath.Join(dir, "rollout-2025-01-01-sess-1.jsonl")
	testutil.RequireNoError(t, os.WriteFile(path, []byte(content), 0o644), "write fixture")

	parser := Parser{Mapper: ToolMapper{}}
	events, err := parser.ParseFile(path)
	testutil.RequireNoError(t, err, "parse file")
	testutil.RequireEqual(t, len(events), 5, "expected 5 events: user, call, result, message, usage")

	testutil.RequireEqual(t, events[0].Payload.Type, event.PayloadUser, "event 0 should be user")
	testutil.RequireEqual(t, events[1].Payload.Type, event.PayloadToolCall, "event 1 should be tool call")
	testutil.RequireEqual(t, events[1].Payload.ToolCall.Variant, event.ToolCallExecute, "tool call should normalize shell to Execute")
	testutil.RequireEqual(t, events[2].Payload.Type, event.PayloadToolResult, "event 2 should be tool result")
	testutil.RequireEqual(t, events[2].Payload.ToolResult.ToolCallID, events[1].ID, "tool result must correlate to the call id")
	testutil.RequireEqual(t, events[3].Payload.Type, event.PayloadMessage, "event 3 should be assistant message")
	testutil.RequireEqual(t, events[4].Payload.Type, event.PayloadTokenUsage, "event 4 should be token usage")
	testutil.RequireEqual(t, events[4].Payload.TokenUsage.InputTokens, 50, "token usage must come from last_token_usage")
}

func TestParseFileSkipsSessionMetaAndTurnContext(t *testing.T) {
	dir := t.TempDir()
	content := `{"timestamp":"2025-01-01T00:00:00Z","type":"session_meta","payload":{"id":"sess-2","timestamp":"2025-01-01T00:00:00Z","cwd":"/repo","originator":"cli","cli_version":"1.0.0","source":"cli"}}
{"timestamp":"2025-01-01T00:00:01Z","type":"turn_context","payload":{"cwd":"/repo","approval_policy":"auto","sandbox_policy":{"type":"read-only"},"model":"gpt","summary":"s"}}
`
	path := filepath.Join(dir, "rollout-2025-01-01-sess-2.jsonl")
	testutil.RequireNoError(t, os.WriteFile(path, []byte(content), 0o644), "write fixture")

	parser := Parser{Mapper: ToolMapper{}}
	events, err := parser.ParseFile(path)
	testutil.RequireNoError(t, err, "parse file")
	testutil.RequireEqual(t, len(events), 0, "session_meta/turn_context carry no conversation content")
}
