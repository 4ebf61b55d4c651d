// Package codex implements the provider trio for Codex's rollout-*.jsonl
// transcripts: line-delimited JSONL records discriminated by a "type" field,
// with tool calls correlated by call_id rather than by parent/child pointer.
package codex

import "encoding/json"

// envelope is the outer shape shared by every Codex record: a type
// discriminator, a timestamp, and an opaque payload decoded per type.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// sessionMetaPayload identifies the session and, for subagent runs (e.g. a
// review spawned mid-session), the subagent kind.
type sessionMetaPayload struct {
	ID         string          `json:"id"`
	Timestamp  string          `json:"timestamp"`
	Cwd        string          `json:"cwd"`
	Originator string          `json:"originator"`
	CliVersion string          `json:"cli_version"`
	Source     json.RawMessage `json:"source"`
}

// subagentSource matches the object form of the untagged SessionSource enum:
// {"subagent": "review"}. A plain string ("cli") fails this decode, which is
// how a CLI (non-subagent) session is distinguished.
type subagentSource struct {
	Subagent string `json:"subagent"`
}

func subagentType(raw json.RawMessage) (string, bool) {
	var s subagentSource
	if err := json.Unmarshal(raw, &s); err == nil && s.Subagent != "" {
		return s.Subagent, true
	}
	return "", false
}

// turnContextPayload marks the start of a turn; Codex has no explicit
// turn-boundary event otherwise.
type turnContextPayload struct {
	Cwd   string `json:"cwd"`
	Model string `json:"model"`
}

// responseItemType probes just the type discriminator; the rest of a
// response_item payload is decoded into one of the type-specific structs
// below once the kind is known, since the same "content" key means a block
// array for message and a plain string for reasoning.
type responseItemType struct {
	Type string `json:"type"`
}

type messagePayload struct {
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type messageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type reasoningPayload struct {
	Summary []summaryText `json:"summary"`
	Content *string       `json:"content"`
}

type summaryText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type functionCallPayload struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
}

type functionCallOutputPayload struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type customToolCallPayload struct {
	Status string `json:"status"`
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Input  string `json:"input"`
}

type customToolCallOutputPayload struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// eventMsgPayload mirrors the EventMsg family. Only TokenCount carries data
// no ResponseItem record also carries, so it is the only EventMsg variant
// mapped to an event; the rest duplicate information already derived from
// ResponseItem records and are intentionally skipped.
type eventMsgPayload struct {
	Type string `json:"type"`
	Info *struct {
		TotalTokenUsage tokenUsage `json:"total_token_usage"`
		LastTokenUsage  tokenUsage `json:"last_token_usage"`
	} `json:"info"`
}

type tokenUsage struct {
	InputTokens           int `json:"input_tokens"`
	CachedInputTokens     int `json:"cached_input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
	TotalTokens           int `json:"total_tokens"`
}
