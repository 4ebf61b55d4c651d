// Package stream turns a session's on-disk transcript files into a live
// feed of new events as a coding agent appends to them, by watching the
// filesystem and re-parsing whichever file changed.
package stream

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rs/zerolog"

	"github.com/traceboard/traceboard/internal/assembler"
	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/provider"
)

// EventType discriminates WatchEvent.
type EventType string

const (
	// Attached reports the watcher has started and the first file it's
	// watching.
	Attached EventType = "attached"
	// Update carries new events appended since the last Update (or since
	// Attached, for the first one), plus the freshly re-assembled session.
	Update EventType = "update"
	// Disconnected reports that the filesystem subscription's event stream
	// closed. Stop ends the watcher by closing the output channel instead.
	Disconnected EventType = "disconnected"
	// Error reports a recoverable problem handling one filesystem event;
	// the watcher keeps running afterward.
	Error EventType = "error"
)

// WatchEvent is one message on a Watcher's output channel.
type WatchEvent struct {
	Type EventType

	// Attached
	Path string

	// Update
	NewEvents []event.AgentEvent
	Session   *assembler.Session

	// Disconnected
	Reason string

	// Error
	Err error
}

// outputBuffer bounds how far a slow consumer can lag before new updates
// are dropped rather than blocking the filesystem-event goroutine.
const outputBuffer = 64

// Watcher follows one session's transcript files, re-parsing whichever
// file is modified and re-assembling the session from the merged event
// stream. A session can be given as more than one file; Watcher treats
// the set as one logical stream.
type Watcher struct {
	sessionID string
	parser    provider.Parser
	log       zerolog.Logger

	fsWatcher *fsnotify.Watcher

	mu         sync.Mutex
	fileEvents map[string][]event.AgentEvent

	out  chan WatchEvent
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Attach begins watching sessionFiles (all belonging to one session) using
// parser to re-normalize each file on change. The parent directory of the
// first file is watched non-recursively — traceboard's three providers
// each keep one session's files in a single directory, unlike a generic
// log tree.
func Attach(sessionID string, sessionFiles []string, parser provider.Parser, log zerolog.Logger) (*Watcher, error) {
	if len(sessionFiles) == 0 {
		return nil, fmt.Errorf("stream: no files to watch for session %s", sessionID)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("stream: create watcher: %w", err)
	}

	watchDir := filepath.Dir(sessionFiles[0])
	if err := fsWatcher.Add(watchDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("stream: watch %s: %w", watchDir, err)
	}

	w := &Watcher{
		sessionID:  sessionID,
		parser:     parser,
		log:        log.With().Str("session_id", sessionID).Logger(),
		fsWatcher:  fsWatcher,
		fileEvents: make(map[string][]event.AgentEvent),
		out:        make(chan WatchEvent, outputBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	watched := make(map[string]bool, len(sessionFiles))
	for _, f := range sessionFiles {
		watched[f] = true
	}

	initial, sess, err := w.loadAll(sessionFiles)
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("stream: initial parse: %w", err)
	}

	w.send(WatchEvent{Type: Attached, Path: sessionFiles[0]})
	if len(initial) > 0 {
		w.send(WatchEvent{Type: Update, NewEvents: initial, Session: sess})
	}

	go w.loop(watched)
	return w, nil
}

// Events returns the channel new WatchEvents arrive on. Closed after Stop
// drains the watcher's goroutine.
func (w *Watcher) Events() <-chan WatchEvent { return w.out }

// Stop ends the filesystem subscription and blocks until the watcher
// goroutine has exited.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.fsWatcher.Close()
	})
	<-w.done
}

func (w *Watcher) loop(watched map[string]bool) {
	defer close(w.done)
	defer close(w.out)

	for {
		select {
		case <-w.stop:
			return
		case fsEvent, ok := <-w.fsWatcher.Events:
			if !ok {
				w.send(WatchEvent{Type: Disconnected, Reason: "filesystem watch ended"})
				return
			}
			if fsEvent.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !watched[fsEvent.Name] {
				continue
			}
			newEvents, sess, err := w.handleChange(fsEvent.Name)
			if err != nil {
				w.log.Warn().Err(err).Str("path", fsEvent.Name).Msg("reparsing changed transcript failed")
				w.send(WatchEvent{Type: Error, Err: err})
				continue
			}
			if len(newEvents) > 0 {
				w.send(WatchEvent{Type: Update, NewEvents: newEvents, Session: sess})
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				continue
			}
			w.log.Warn().Err(err).Msg("filesystem watcher reported an error")
			w.send(WatchEvent{Type: Error, Err: err})
		}
	}
}

// send drops the event and logs instead of blocking when a consumer has
// fallen behind — the watcher goroutine must never stall on a full
// channel, since a stalled watcher stops noticing file changes entirely.
func (w *Watcher) send(evt WatchEvent) {
	select {
	case w.out <- evt:
	default:
		w.log.Warn().Str("event_type", string(evt.Type)).Msg("dropping watch event, consumer is falling behind")
	}
}

func (w *Watcher) loadAll(files []string) ([]event.AgentEvent, *assembler.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range files {
		events, err := w.parser.ParseFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", path, err)
		}
		w.fileEvents[path] = events
	}

	merged := w.mergeLocked()
	return merged, assembler.Assemble(merged), nil
}

// handleChange re-parses one changed file and reports only the events
// appended since the last time it was read. A file that shrank (log
// rotation, or a provider truncating and rewriting) has every one of its
// events treated as new, since there's no way to know which of its
// previous events, if any, survived.
func (w *Watcher) handleChange(path string) ([]event.AgentEvent, *assembler.Session, error) {
	reparsed, err := w.parser.ParseFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	previous := w.fileEvents[path]
	var newEvents []event.AgentEvent
	if len(reparsed) >= len(previous) {
		newEvents = reparsed[len(previous):]
	} else {
		newEvents = reparsed
	}

	w.fileEvents[path] = reparsed

	merged := w.mergeLocked()
	return newEvents, assembler.Assemble(merged), nil
}

// mergeLocked flattens every watched file's events and stable-sorts by
// timestamp, preserving each file's own internal order for events sharing
// a timestamp (a ToolCall must stay before its ToolResult even when both
// carry the same recorded time). Files are visited in sorted-path order
// rather than map iteration order, so ties across files also resolve the
// same way on every call. Callers must hold w.mu.
func (w *Watcher) mergeLocked() []event.AgentEvent {
	paths := make([]string, 0, len(w.fileEvents))
	for path := range w.fileEvents {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var all []event.AgentEvent
	for _, path := range paths {
		all = append(all, w.fileEvents[path]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all
}
