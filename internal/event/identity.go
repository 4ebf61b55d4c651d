package event

import "github.com/google/uuid"

// Suffix names the semantic reason an event was created, used as the second
// half of the deterministic UUID v5 name "<baseID>:<suffix>". Keeping the
// reason in the name (rather than hashing baseID alone) lets one provider
// record produce several distinct, stable event ids — e.g. a Gemini
// assistant turn yields both a Message event and a TokenUsage sidecar from
// the same record.
type Suffix int

const (
	SuffixUser Suffix = iota
	SuffixReasoning
	SuffixMessage
	SuffixToolCall
	SuffixToolResult
	SuffixTokenUsage
	SuffixNotification
)

// String returns the literal suffix used in the UUID v5 name.
func (s Suffix) String() string {
	switch s {
	case SuffixUser:
		return "user"
	case SuffixReasoning:
		return "reasoning"
	case SuffixMessage:
		return "message"
	case SuffixToolCall:
		return "call"
	case SuffixToolResult:
		return "result"
	case SuffixTokenUsage:
		return "usage"
	case SuffixNotification:
		return "notify"
	default:
		return "unknown"
	}
}

// DeriveID computes the deterministic event id for a provider record.
// traceID is used as the UUID v5 namespace, so identical (baseID, suffix)
// pairs always produce the same event id within one session but never
// collide across sessions. baseID is provider-specific: a Claude Code
// record uuid or tool_use id, a Codex record's line number or call_id, a
// Gemini message id.
//
// Re-parsing a log file therefore reproduces exactly the same event ids,
// which is what lets the Live Streamer re-parse whole files on every change
// instead of tracking a byte offset.
func DeriveID(traceID uuid.UUID, baseID string, suffix Suffix) uuid.UUID {
	name := baseID + ":" + suffix.String()
	return uuid.NewSHA1(traceID, []byte(name))
}
