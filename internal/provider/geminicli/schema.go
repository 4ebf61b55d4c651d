// Package geminicli implements the provider trio for Gemini CLI's
// session-*.json transcript format: a single JSON document (not JSONL)
// holding the whole conversation as a flat messages array, unfolded here
// into the common event stream.
package geminicli

import "encoding/json"

// session is the top-level session-*.json document.
type session struct {
	SessionID   string    `json:"session_id"`
	ProjectHash string    `json:"project_hash"`
	StartTime   string    `json:"start_time"`
	LastUpdated string    `json:"last_updated"`
	Messages    []message `json:"messages"`
}

// message is tagged by Type: "user", "gemini", or "info". Only the fields
// relevant to its own type are populated; the rest are zero.
type message struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Content   string     `json:"content"`
	Model     string     `json:"model,omitempty"`
	Thoughts  []thought  `json:"thoughts,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	Tokens    *tokens    `json:"tokens,omitempty"`
}

type thought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

type toolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Args          json.RawMessage `json:"args"`
	Result        json.RawMessage `json:"result"`
	ResultDisplay *string         `json:"result_display,omitempty"`
	Status        *string        `json:"status,omitempty"`
}

func (t toolCall) hasResult() bool {
	return len(t.Result) > 0 && string(t.Result) != "null"
}

type tokens struct {
	Input    int `json:"input"`
	Output   int `json:"output"`
	Total    int `json:"total"`
	Cached   int `json:"cached"`
	Thoughts int `json:"thoughts"`
	Tool     int `json:"tool"`
}
