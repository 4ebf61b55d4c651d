// Package reactor defines the pluggable observer contract the runtime
// coordinator dispatches normalized events to, plus the two reactors
// shipped with traceboard: a safety guard over tool-call arguments and a
// token-usage monitor against a model's context window.
package reactor

import (
	"time"

	"github.com/traceboard/traceboard/internal/assembler"
	"github.com/traceboard/traceboard/internal/event"
)

// Reaction is what a Reactor returns after observing one event.
type Reaction struct {
	// Warned reports whether this reaction carries a warning. False means
	// Continue: the coordinator has nothing to surface.
	Warned bool
	Reason string
}

// Continue is the no-op reaction most events produce.
var Continue = Reaction{}

// Warn builds a Reaction carrying reason.
func Warn(reason string) Reaction {
	return Reaction{Warned: true, Reason: reason}
}

// SessionState is the coordinator's running view of a watched session,
// updated on every event before reactors see it.
type SessionState struct {
	SessionID   string
	StartTime   time.Time
	LastActivity time.Time
	Model       string
	Usage       event.TokenUsagePayload
	TurnCount   int
	ErrorCount  int
	EventCount  int
}

// NewSessionState initializes state for a session first seen at startTime.
func NewSessionState(sessionID string, startTime time.Time) *SessionState {
	return &SessionState{SessionID: sessionID, StartTime: startTime, LastActivity: startTime}
}

// Context bundles the event a Reactor is inspecting with the session state
// accumulated up to and including it.
type Context struct {
	Event *event.AgentEvent
	State *SessionState
	// Session is the latest assembled view, when the coordinator has one
	// (the watcher keeps re-assembling on every file change).
	Session *assembler.Session
}

// Reactor observes one event at a time and reports whether it warrants the
// composition root's attention. Implementations must not block or mutate
// anything outside their own state — the coordinator calls every
// registered Reactor synchronously, in registration order, for every event.
type Reactor interface {
	Name() string
	Handle(ctx Context) Reaction
}
