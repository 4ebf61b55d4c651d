package claudecode

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/streamjson"
)

// Parser normalizes Claude Code's line-delimited stream-json transcript
// into the common event model.
type Parser struct {
	Mapper ToolMapper
}

// ParseFile reads every JSONL line of path and returns the normalized
// events in file order. A line that fails to decode as any recognized
// envelope is skipped rather than aborting the whole file, matching the
// per-file error isolation spec requires of a scan.
func (p Parser) ParseFile(path string) ([]event.AgentEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claude code transcript: %w", err)
	}
	defer file.Close()

	sessionIDStr, err := Discovery{}.ExtractSessionID(path)
	if err != nil {
		return nil, fmt.Errorf("extract session id: %w", err)
	}
	traceID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		// Fall back to deriving a stable id from the string; some
		// compatible runtimes (Cursor Agent CLI) don't name files with a
		// literal UUID.
		traceID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionIDStr))
	}

	builder := event.NewBuilder(traceID)
	var events []event.AgentEvent
	var lastTimestamp time.Time

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var envelope streamjson.Envelope
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case "user":
			var rec streamjson.UserEvent
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			ts := parseTimestamp(rec.Timestamp, &lastTimestamp)
			p.appendUser(builder, &events, rec, ts)
		case "assistant":
			var rec streamjson.AssistantEvent
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			ts := parseTimestamp(rec.Timestamp, &lastTimestamp)
			p.appendAssistant(builder, &events, rec, ts)
		default:
			// system/summary/other envelopes carry no conversation content
			// of their own and are intentionally not mapped to events.
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan claude code transcript: %w", err)
	}

	return events, nil
}

func (p Parser) appendUser(builder *event.Builder, events *[]event.AgentEvent, rec streamjson.UserEvent, ts time.Time) {
	if rec.IsMeta {
		return
	}
	stream := streamFor(rec.IsSidechain, rec.ParentToolUseID)

	// A user envelope containing tool_result blocks answers a prior
	// ToolCall rather than starting a new turn.
	if blocks, ok := rec.Message.Content.([]any); ok {
		handled := false
		for _, raw := range blocks {
			block, ok := raw.(map[string]any)
			if !ok || block["type"] != "tool_result" {
				continue
			}
			toolUseID, _ := block["tool_use_id"].(string)
			toolCallID, found := builder.ToolCallID(toolUseID)
			if !found {
				continue
			}
			isError, _ := block["is_error"].(bool)
			output := streamjson.ExtractText(block["content"])
			builder.BuildAndPush(events, rec.UUID, event.SuffixToolResult, ts, event.EventPayload{
				Type: event.PayloadToolResult,
				ToolResult: &event.ToolResultPayload{
					Output:     output,
					ToolCallID: toolCallID,
					IsError:    isError,
				},
			}, nil, stream)
			handled = true
		}
		if handled {
			return
		}
	}

	text := streamjson.ExtractText(rec.Message.Content)
	if strings.TrimSpace(text) == "" {
		return
	}
	builder.BuildAndPush(events, rec.UUID, event.SuffixUser, ts, event.EventPayload{
		Type: event.PayloadUser,
		User: &event.UserPayload{Text: text},
	}, nil, stream)
}

func (p Parser) appendAssistant(builder *event.Builder, events *[]event.AgentEvent, rec streamjson.AssistantEvent, ts time.Time) {
	stream := streamFor(rec.IsSidechain, rec.ParentToolUseID)

	blocks, isBlocks := rec.Message.Content.([]any)
	if !isBlocks {
		text := streamjson.ExtractText(rec.Message.Content)
		if strings.TrimSpace(text) == "" {
			return
		}
		p.pushMessageWithUsage(builder, events, rec, ts, stream, text)
		return
	}

	var messageText strings.Builder
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch block["type"] {
		case "thinking":
			text, _ := block["thinking"].(string)
			if strings.TrimSpace(text) == "" {
				continue
			}
			builder.BuildAndPush(events, rec.UUID, event.SuffixReasoning, ts, event.EventPayload{
				Type:      event.PayloadReasoning,
				Reasoning: &event.ReasoningPayload{Text: text},
			}, nil, stream)
		case "text":
			text, _ := block["text"].(string)
			messageText.WriteString(text)
		case "tool_use":
			name, _ := block["name"].(string)
			toolUseID, _ := block["id"].(string)
			rawInput, err := json.Marshal(block["input"])
			if err != nil {
				rawInput = json.RawMessage("{}")
			}
			payload := p.Mapper.Normalize(name, rawInput, toolUseID)
			id := builder.BuildAndPush(events, toolUseID, event.SuffixToolCall, ts, event.EventPayload{
				Type:     event.PayloadToolCall,
				ToolCall: &payload,
			}, nil, stream)
			builder.RegisterToolCall(toolUseID, id)
		}
	}

	if text := strings.TrimSpace(messageText.String()); text != "" {
		p.pushMessageWithUsage(builder, events, rec, ts, stream, messageText.String())
	}
}

func (p Parser) pushMessageWithUsage(builder *event.Builder, events *[]event.AgentEvent, rec streamjson.AssistantEvent, ts time.Time, stream event.StreamID, text string) {
	builder.BuildAndPush(events, rec.UUID, event.SuffixMessage, ts, event.EventPayload{
		Type:    event.PayloadMessage,
		Message: &event.MessagePayload{Text: text},
	}, event.EncodeModelMetadata(rec.Message.Model), stream)

	if rec.Message.Usage == nil {
		return
	}
	usage := rec.Message.Usage
	var details *event.TokenUsageDetails
	if usage.CacheReadInputTokens != 0 || usage.CacheCreationInputTokens != 0 {
		cacheRead := usage.CacheReadInputTokens
		details = &event.TokenUsageDetails{CacheReadInputTokens: &cacheRead}
	}
	builder.BuildAndPush(events, rec.UUID, event.SuffixTokenUsage, ts, event.EventPayload{
		Type: event.PayloadTokenUsage,
		TokenUsage: &event.TokenUsagePayload{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalTokens:  usage.InputTokens + usage.OutputTokens,
			Details:      details,
		},
	}, nil, stream)
}

// streamFor derives the event StreamID for a record. Claude Code marks
// sub-agent (Task tool) transcript lines with isSidechain; the spawning
// tool_use id becomes the sidechain's identity.
func streamFor(isSidechain bool, parentToolUseID *string) event.StreamID {
	if isSidechain && parentToolUseID != nil {
		return event.Sidechain(*parentToolUseID)
	}
	return event.MainStream
}

// parseTimestamp parses an RFC3339 timestamp, falling back to the previous
// event's timestamp when the record carries none or an unparseable one.
// Never falls back to wall-clock time: a re-parsed file must reproduce
// identical timestamps every time.
func parseTimestamp(raw string, last *time.Time) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			*last = ts
			return ts
		}
	}
	return *last
}
