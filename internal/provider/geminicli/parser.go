package geminicli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
)

// Parser unfolds a Gemini CLI session document (thoughts, tool calls,
// nested under each message) into the flat common event stream.
type Parser struct {
	Mapper ToolMapper
}

// ParseFile reads the whole session-*.json document at path and returns the
// normalized events in message order.
func (p Parser) ParseFile(path string) ([]event.AgentEvent, error) {
	sess, err := readSession(path)
	if err != nil {
		return nil, fmt.Errorf("read gemini cli session: %w", err)
	}
	if sess.SessionID == "" {
		return nil, fmt.Errorf("gemini cli session missing session_id: %s", path)
	}

	// Deterministic per-session UUID, the same derivation scheme the claude
	// code and codex parsers fall back to for non-UUID session identifiers.
	traceID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(sess.SessionID))
	builder := event.NewBuilder(traceID)
	var events []event.AgentEvent
	var lastTimestamp time.Time

	for _, msg := range sess.Messages {
		ts := parseTimestamp(msg.Timestamp, &lastTimestamp)
		switch msg.Type {
		case "user":
			appendUserMessage(builder, &events, msg, ts)
		case "gemini":
			p.appendGeminiMessage(builder, &events, msg, ts)
		case "info":
			appendInfoMessage(builder, &events, msg, ts)
		}
	}

	return events, nil
}

// appendUserMessage skips messages whose id is a bare integer — a legacy
// CLI event id format that carries no stable identity to derive a UUID
// from.
func appendUserMessage(builder *event.Builder, events *[]event.AgentEvent, msg message, ts time.Time) {
	if _, err := strconv.ParseUint(msg.ID, 10, 32); err == nil {
		return
	}
	builder.BuildAndPush(events, msg.ID, event.SuffixUser, ts, event.EventPayload{
		Type: event.PayloadUser,
		User: &event.UserPayload{Text: msg.Content},
	}, nil, event.MainStream)
}

func appendInfoMessage(builder *event.Builder, events *[]event.AgentEvent, msg message, ts time.Time) {
	builder.BuildAndPush(events, msg.ID, event.SuffixNotification, ts, event.EventPayload{
		Type:         event.PayloadNotification,
		Notification: &event.NotificationPayload{Text: msg.Content, Level: "info"},
	}, nil, event.MainStream)
}

func (p Parser) appendGeminiMessage(builder *event.Builder, events *[]event.AgentEvent, msg message, ts time.Time) {
	baseID := msg.ID

	for idx, th := range msg.Thoughts {
		indexedID := fmt.Sprintf("%s-thought-%d", baseID, idx)
		text := strings.TrimSpace(th.Subject + ": " + th.Description)
		builder.BuildAndPush(events, indexedID, event.SuffixReasoning, ts, event.EventPayload{
			Type:      event.PayloadReasoning,
			Reasoning: &event.ReasoningPayload{Text: text},
		}, nil, event.MainStream)
	}

	for idx, call := range msg.ToolCalls {
		indexedID := fmt.Sprintf("%s-tool-%d", baseID, idx)
		payload := p.Mapper.Normalize(call.Name, call.Args, call.ID)
		toolCallUUID := builder.BuildAndPush(events, indexedID, event.SuffixToolCall, ts, event.EventPayload{
			Type:     event.PayloadToolCall,
			ToolCall: &payload,
		}, nil, event.MainStream)
		builder.RegisterToolCall(call.ID, toolCallUUID)

		if call.hasResult() {
			output := string(call.Result)
			if call.ResultDisplay != nil {
				output = *call.ResultDisplay
			}
			isError := call.Status != nil && *call.Status == "error"
			builder.BuildAndPush(events, indexedID, event.SuffixToolResult, ts, event.EventPayload{
				Type: event.PayloadToolResult,
				ToolResult: &event.ToolResultPayload{
					Output:     output,
					ToolCallID: toolCallUUID,
					IsError:    isError,
				},
			}, nil, event.MainStream)
		}
	}

	builder.BuildAndPush(events, baseID, event.SuffixMessage, ts, event.EventPayload{
		Type:    event.PayloadMessage,
		Message: &event.MessagePayload{Text: msg.Content},
	}, event.EncodeModelMetadata(msg.Model), event.MainStream)

	if msg.Tokens != nil {
		cacheRead := msg.Tokens.Cached
		reasoningOut := msg.Tokens.Thoughts
		builder.BuildAndPush(events, baseID, event.SuffixTokenUsage, ts, event.EventPayload{
			Type: event.PayloadTokenUsage,
			TokenUsage: &event.TokenUsagePayload{
				InputTokens:  msg.Tokens.Input,
				OutputTokens: msg.Tokens.Output,
				TotalTokens:  msg.Tokens.Total,
				Details: &event.TokenUsageDetails{
					CacheReadInputTokens:  &cacheRead,
					ReasoningOutputTokens: &reasoningOut,
				},
			},
		}, nil, event.MainStream)
	}
}

// parseTimestamp parses an RFC3339 timestamp, falling back to the previous
// event's timestamp. This deliberately diverges from a wall-clock fallback:
// a re-parsed file must reproduce identical timestamps every time.
func parseTimestamp(raw string, last *time.Time) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			*last = ts
			return ts
		}
	}
	return *last
}
