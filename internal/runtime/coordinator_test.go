package runtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/traceboard/traceboard/internal/provider/claudecode"
	"github.com/traceboard/traceboard/internal/reactor"
	"github.com/traceboard/traceboard/internal/stream"
	"github.com/traceboard/traceboard/internal/testutil"
)

func writeFixture(t *testing.T, path string, lines []string) {
	t.Helper()
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	testutil.RequireNoError(t, os.WriteFile(path, []byte(content), 0o644), "write transcript fixture")
}

func awaitUpdate(t *testing.T, c *Coordinator, want UpdateType) Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case upd, ok := <-c.Updates():
			if !ok {
				t.Fatalf("updates channel closed before seeing %s", want)
			}
			if upd.Type == want {
				return upd
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s update", want)
		}
	}
}

func TestCoordinatorDispatchesSafetyGuardReaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	writeFixture(t, path, []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"sess"}`,
		`{"type":"assistant","message":{"role":"assistant","model":"claude-3-5-sonnet-20241022","content":[{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"/etc/passwd"}},{"type":"text","text":"reading now"}]},"session_id":"sess","uuid":"a1","timestamp":"2025-01-01T00:00:00Z"}`,
	})

	w, err := stream.Attach("sess", []string{path}, claudecode.Parser{Mapper: claudecode.ToolMapper{}}, zerolog.Nop())
	testutil.RequireNoError(t, err, "attach watcher")
	defer w.Stop()

	c := Start(w, []reactor.Reactor{reactor.NewSafetyGuard()}, zerolog.Nop())

	awaitUpdate(t, c, Attached)
	reactionUpdate := awaitUpdate(t, c, Reaction)
	testutil.RequireEqual(t, reactionUpdate.ReactorName, "SafetyGuard", "reactor name")
	testutil.RequireTrue(t, reactionUpdate.Reaction.Warned, "dangerous read should warn")
	testutil.RequireStringContains(t, reactionUpdate.Reaction.Reason, "System directory", "reaction reason")

	stateUpdate := awaitUpdate(t, c, StateUpdated)
	testutil.RequireEqual(t, stateUpdate.State.Model, "claude-3-5-sonnet-20241022", "model should be captured from the assistant message")
}
