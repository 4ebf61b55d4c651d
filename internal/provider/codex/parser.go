package codex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traceboard/traceboard/internal/event"
)

// Parser normalizes a Codex rollout-*.jsonl transcript into the common
// event model. response_item records are the primary source of
// conversation content; event_msg records duplicate most of that content
// for Codex's own UI and are skipped except for token_count, which carries
// usage data no response_item record repeats.
type Parser struct {
	Mapper ToolMapper
}

// ParseFile reads every JSONL line of path and returns the normalized
// events in file order.
func (p Parser) ParseFile(path string) ([]event.AgentEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codex transcript: %w", err)
	}
	defer file.Close()

	sessionID, err := (Discovery{}).ExtractSessionID(path)
	if err != nil {
		return nil, fmt.Errorf("extract session id: %w", err)
	}
	traceID, err := uuid.Parse(sessionID)
	if err != nil {
		traceID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(sessionID))
	}

	builder := event.NewBuilder(traceID)
	var events []event.AgentEvent
	var lastTimestamp time.Time
	var currentModel string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineIndex := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lineIndex++

		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			continue
		}
		ts := parseTimestamp(env.Timestamp, &lastTimestamp)

		switch env.Type {
		case "turn_context":
			var turn turnContextPayload
			if err := json.Unmarshal(env.Payload, &turn); err == nil && turn.Model != "" {
				currentModel = turn.Model
			}
		case "response_item":
			p.appendResponseItem(builder, &events, env.Payload, ts, lineIndex, currentModel)
		case "event_msg":
			p.appendEventMsg(builder, &events, env.Payload, ts, lineIndex)
		default:
			// session_meta carries no conversation content of its own.
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan codex transcript: %w", err)
	}
	return events, nil
}

func (p Parser) appendResponseItem(builder *event.Builder, events *[]event.AgentEvent, raw json.RawMessage, ts time.Time, lineIndex int, model string) {
	var kind responseItemType
	if err := json.Unmarshal(raw, &kind); err != nil {
		return
	}
	baseID := strconv.Itoa(lineIndex)

	switch kind.Type {
	case "message":
		var msg messagePayload
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		var text strings.Builder
		for _, block := range msg.Content {
			switch block.Type {
			case "input_text", "output_text":
				text.WriteString(block.Text)
			}
		}
		content := strings.TrimSpace(text.String())
		if content == "" {
			return
		}
		if msg.Role == "user" {
			builder.BuildAndPush(events, baseID, event.SuffixUser, ts, event.EventPayload{
				Type: event.PayloadUser,
				User: &event.UserPayload{Text: content},
			}, nil, event.MainStream)
		} else {
			builder.BuildAndPush(events, baseID, event.SuffixMessage, ts, event.EventPayload{
				Type:    event.PayloadMessage,
				Message: &event.MessagePayload{Text: content},
			}, event.EncodeModelMetadata(model), event.MainStream)
		}

	case "reasoning":
		var reasoning reasoningPayload
		if err := json.Unmarshal(raw, &reasoning); err != nil {
			return
		}
		var text strings.Builder
		if reasoning.Content != nil {
			text.WriteString(*reasoning.Content)
		}
		for _, s := range reasoning.Summary {
			if s.Type == "summary_text" {
				text.WriteString(s.Text)
			}
		}
		content := strings.TrimSpace(text.String())
		if content == "" {
			return
		}
		builder.BuildAndPush(events, baseID, event.SuffixReasoning, ts, event.EventPayload{
			Type:      event.PayloadReasoning,
			Reasoning: &event.ReasoningPayload{Text: content},
		}, nil, event.MainStream)

	case "function_call":
		var call functionCallPayload
		if err := json.Unmarshal(raw, &call); err != nil {
			return
		}
		payload := p.Mapper.Normalize(call.Name, json.RawMessage(call.Arguments), call.CallID)
		id := builder.BuildAndPush(events, call.CallID, event.SuffixToolCall, ts, event.EventPayload{
			Type:     event.PayloadToolCall,
			ToolCall: &payload,
		}, nil, event.MainStream)
		builder.RegisterToolCall(call.CallID, id)

	case "function_call_output":
		var out functionCallOutputPayload
		if err := json.Unmarshal(raw, &out); err != nil {
			return
		}
		appendToolResult(builder, events, out.CallID, out.Output, false, ts)

	case "custom_tool_call":
		var call customToolCallPayload
		if err := json.Unmarshal(raw, &call); err != nil {
			return
		}
		payload := p.Mapper.Normalize(call.Name, json.RawMessage(strconv.Quote(call.Input)), call.CallID)
		id := builder.BuildAndPush(events, call.CallID, event.SuffixToolCall, ts, event.EventPayload{
			Type:     event.PayloadToolCall,
			ToolCall: &payload,
		}, nil, event.MainStream)
		builder.RegisterToolCall(call.CallID, id)

	case "custom_tool_call_output":
		var out customToolCallOutputPayload
		if err := json.Unmarshal(raw, &out); err != nil {
			return
		}
		appendToolResult(builder, events, out.CallID, out.Output, false, ts)
	}
}

func appendToolResult(builder *event.Builder, events *[]event.AgentEvent, callID, output string, isError bool, ts time.Time) {
	toolCallID, found := builder.ToolCallID(callID)
	if !found {
		return
	}
	builder.BuildAndPush(events, callID, event.SuffixToolResult, ts, event.EventPayload{
		Type: event.PayloadToolResult,
		ToolResult: &event.ToolResultPayload{
			Output:     output,
			ToolCallID: toolCallID,
			IsError:    isError,
		},
	}, nil, event.MainStream)
}

func (p Parser) appendEventMsg(builder *event.Builder, events *[]event.AgentEvent, raw json.RawMessage, ts time.Time, lineIndex int) {
	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &kind); err != nil || kind.Type != "token_count" {
		return
	}
	var payload eventMsgPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Info == nil {
		return
	}
	usage := payload.Info.LastTokenUsage
	var details *event.TokenUsageDetails
	if usage.CachedInputTokens != 0 || usage.ReasoningOutputTokens != 0 {
		cacheRead := usage.CachedInputTokens
		reasoningOut := usage.ReasoningOutputTokens
		details = &event.TokenUsageDetails{
			CacheReadInputTokens:  &cacheRead,
			ReasoningOutputTokens: &reasoningOut,
		}
	}
	baseID := "token_count:" + strconv.Itoa(lineIndex)
	builder.BuildAndPush(events, baseID, event.SuffixTokenUsage, ts, event.EventPayload{
		Type: event.PayloadTokenUsage,
		TokenUsage: &event.TokenUsagePayload{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalTokens:  usage.TotalTokens,
			Details:      details,
		},
	}, nil, event.MainStream)
}

// parseTimestamp parses an RFC3339 timestamp, falling back to the previous
// event's timestamp — never to wall-clock time — so re-parsing a file
// reproduces identical output.
func parseTimestamp(raw string, last *time.Time) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			*last = ts
			return ts
		}
	}
	return *last
}
