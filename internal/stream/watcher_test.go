package stream

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/traceboard/traceboard/internal/provider"
	"github.com/traceboard/traceboard/internal/provider/claudecode"
	"github.com/traceboard/traceboard/internal/testutil"
)

func claudeParser() provider.Parser {
	return claudecode.Parser{Mapper: claudecode.ToolMapper{}}
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	testutil.RequireNoError(t, os.WriteFile(path, []byte(content), 0o644), "write transcript fixture")
}

func awaitEvent(t *testing.T, w *Watcher, want EventType) WatchEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-w.Events():
			if !ok {
				t.Fatalf("events channel closed before seeing %s", want)
			}
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestAttachEmitsAttachedAndInitialUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLines(t, path, []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"sess"}`,
		`{"type":"user","message":{"role":"user","content":"hi"},"session_id":"sess","uuid":"u1","timestamp":"2025-01-01T00:00:00Z"}`,
	})

	w, err := Attach("sess", []string{path}, claudeParser(), zerolog.Nop())
	testutil.RequireNoError(t, err, "attach")
	defer w.Stop()

	attached := awaitEvent(t, w, Attached)
	testutil.RequireEqual(t, attached.Path, path, "attached path")

	update := awaitEvent(t, w, Update)
	testutil.RequireTrue(t, len(update.NewEvents) > 0, "initial update should carry the seeded events")
}

func TestAttachDetectsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLines(t, path, []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"sess"}`,
		`{"type":"user","message":{"role":"user","content":"hi"},"session_id":"sess","uuid":"u1","timestamp":"2025-01-01T00:00:00Z"}`,
	})

	w, err := Attach("sess", []string{path}, claudeParser(), zerolog.Nop())
	testutil.RequireNoError(t, err, "attach")
	defer w.Stop()

	awaitEvent(t, w, Attached)
	awaitEvent(t, w, Update)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	testutil.RequireNoError(t, err, "open for append")
	_, err = f.WriteString(`{"type":"user","message":{"role":"user","content":"again"},"session_id":"sess","uuid":"u2","timestamp":"2025-01-01T00:01:00Z"}` + "\n")
	testutil.RequireNoError(t, err, "append line")
	testutil.RequireNoError(t, f.Close(), "close appended file")

	update := awaitEvent(t, w, Update)
	testutil.RequireTrue(t, len(update.NewEvents) > 0, "appended line should produce new events")
	testutil.RequireTrue(t, update.Session != nil, "update should carry a re-assembled session")
}

func TestStopClosesEventsChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeLines(t, path, []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"sess"}`,
	})

	w, err := Attach("sess", []string{path}, claudeParser(), zerolog.Nop())
	testutil.RequireNoError(t, err, "attach")

	awaitEvent(t, w, Attached)
	w.Stop()

	_, ok := <-w.Events()
	testutil.RequireTrue(t, !ok, "events channel should be closed after Stop")
}
