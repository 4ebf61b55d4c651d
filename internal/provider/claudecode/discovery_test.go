package claudecode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/traceboard/traceboard/internal/testutil"
)

func writeTranscript(t *testing.T, name string, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	testutil.RequireNoError(t, os.WriteFile(path, []byte(content), 0o644), "write transcript fixture")
	return path
}

func TestDiscoveryProbeMatchesTranscript(t *testing.T) {
	path := writeTranscript(t, "abc-123.jsonl", []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"abc-123"}`,
	})

	match, err := (Discovery{}).Probe(path)
	testutil.RequireNoError(t, err, "probe")
	testutil.RequireTrue(t, match.Matched, "expected transcript to match")
}

func TestDiscoveryProbeRejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc-123.json")
	testutil.RequireNoError(t, os.WriteFile(path, []byte(`{"type":"user"}`), 0o644), "write fixture")

	match, err := (Discovery{}).Probe(path)
	testutil.RequireNoError(t, err, "probe")
	testutil.RequireTrue(t, !match.Matched, "expected non-jsonl file to not match")
}

func TestDiscoveryExtractSessionIDUsesFilenameStem(t *testing.T) {
	path := writeTranscript(t, "session-xyz.jsonl", []string{`{"type":"user"}`})

	id, err := (Discovery{}).ExtractSessionID(path)
	testutil.RequireNoError(t, err, "extract session id")
	testutil.RequireEqual(t, id, "session-xyz", "session id mismatch")
}

func TestDiscoveryExtractProjectHashFromSystemInit(t *testing.T) {
	path := writeTranscript(t, "abc-123.jsonl", []string{
		`{"type":"system","subtype":"init","cwd":"/work/repo","session_id":"abc-123"}`,
		`{"type":"user","message":{"role":"user","content":"hi"},"session_id":"abc-123","uuid":"u1"}`,
	})

	hash, ok := (Discovery{}).ExtractProjectHash(path)
	testutil.RequireTrue(t, ok, "expected a project hash")
	testutil.RequireTrue(t, hash != "", "expected non-empty hash")
}

func TestDiscoveryExtractProjectHashMissingInit(t *testing.T) {
	path := writeTranscript(t, "abc-123.jsonl", []string{
		`{"type":"user","message":{"role":"user","content":"hi"},"session_id":"abc-123","uuid":"u1"}`,
	})

	_, ok := (Discovery{}).ExtractProjectHash(path)
	testutil.RequireTrue(t, !ok, "expected no project hash without a system/init event")
}
