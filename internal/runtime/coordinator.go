// Package runtime owns the live dispatch loop: it drains a stream.Watcher's
// events, folds each one into a running reactor.SessionState, and runs
// every registered reactor.Reactor over it in order, surfacing whatever it
// learns (attachment, state updates, reactions, disconnection) on its own
// output channel.
package runtime

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/traceboard/traceboard/internal/assembler"
	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/reactor"
	"github.com/traceboard/traceboard/internal/stream"
)

// UpdateType discriminates Update.
type UpdateType string

const (
	Attached     UpdateType = "attached"
	StateUpdated UpdateType = "state_updated"
	Reaction     UpdateType = "reaction"
	Disconnected UpdateType = "disconnected"
)

// Update is one message on a Coordinator's output channel.
type Update struct {
	Type UpdateType

	// Attached
	DisplayName string

	// StateUpdated
	State   *reactor.SessionState
	Session *assembler.Session

	// Reaction
	ReactorName string
	Reaction    reactor.Reaction

	// Disconnected
	Reason string
}

// outputBuffer bounds how far a slow consumer can lag; dropped updates are
// logged rather than blocking the dispatch loop, matching stream.Watcher's
// own policy.
const outputBuffer = 64

// Coordinator runs the dispatch loop for one watched session.
type Coordinator struct {
	watcher  *stream.Watcher
	reactors []reactor.Reactor
	log      zerolog.Logger

	state *reactor.SessionState
	out   chan Update
}

// Start begins draining w's events in a background goroutine, dispatching
// each to every reactor in order. The returned Coordinator's Updates
// channel closes once w's does.
func Start(w *stream.Watcher, reactors []reactor.Reactor, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		watcher:  w,
		reactors: reactors,
		log:      log,
		out:      make(chan Update, outputBuffer),
	}
	go c.loop()
	return c
}

// Updates returns the channel Update values arrive on.
func (c *Coordinator) Updates() <-chan Update { return c.out }

func (c *Coordinator) loop() {
	defer close(c.out)

	for evt := range c.watcher.Events() {
		switch evt.Type {
		case stream.Attached:
			c.send(Update{Type: Attached, DisplayName: displayName(evt.Path)})
		case stream.Update:
			c.handleUpdate(evt)
		case stream.Disconnected:
			c.send(Update{Type: Disconnected, Reason: evt.Reason})
		case stream.Error:
			c.log.Warn().Err(evt.Err).Msg("stream reported a recoverable error")
		}
	}
}

func (c *Coordinator) handleUpdate(evt stream.WatchEvent) {
	for i := range evt.NewEvents {
		agentEvent := &evt.NewEvents[i]

		if c.state == nil {
			c.state = reactor.NewSessionState(agentEvent.TraceID.String(), agentEvent.Timestamp)
		}
		c.applyUpdate(agentEvent)

		ctx := reactor.Context{Event: agentEvent, State: c.state, Session: evt.Session}
		for _, r := range c.reactors {
			reaction := r.Handle(ctx)
			if reaction.Warned {
				c.send(Update{Type: Reaction, ReactorName: r.Name(), Reaction: reaction})
			}
		}
	}

	if c.state != nil {
		c.send(Update{Type: StateUpdated, State: c.state, Session: evt.Session})
	}
}

// applyUpdate folds one event's StateUpdates into the running SessionState.
// A new turn resets the error streak; only ToolResult events move it
// forward or reset it on success; the first model name seen wins, since a
// session's model rarely changes mid-conversation and the earliest report
// is the most trustworthy.
func (c *Coordinator) applyUpdate(evt *event.AgentEvent) {
	c.state.LastActivity = evt.Timestamp
	c.state.EventCount++

	updates := ExtractStateUpdates(evt)

	if updates.IsNewTurn {
		c.state.TurnCount++
		c.state.ErrorCount = 0
	}

	if updates.HasToolResult {
		if updates.IsError {
			c.state.ErrorCount++
		} else {
			c.state.ErrorCount = 0
		}
	}

	if updates.Model != "" && c.state.Model == "" {
		c.state.Model = updates.Model
	}

	if updates.Usage != nil {
		c.state.Usage = *updates.Usage
	}
}

// send drops the update and logs instead of blocking when a consumer has
// fallen behind, so a stalled UI never stalls the dispatch loop itself.
func (c *Coordinator) send(update Update) {
	select {
	case c.out <- update:
	default:
		c.log.Warn().Str("update_type", string(update.Type)).Msg("dropping coordinator update, consumer is falling behind")
	}
}

func displayName(path string) string {
	if path == "" {
		return "unknown"
	}
	return filepath.Base(path)
}
