package codex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/traceboard/traceboard/internal/provider"
)

// Discovery identifies Codex rollout transcripts: JSONL files named
// rollout-*.jsonl whose header lines carry a session_meta record with a
// session id.
type Discovery struct{}

// Probe reports whether path looks like a Codex rollout file.
func (Discovery) Probe(path string) (provider.Match, error) {
	if filepath.Ext(path) != ".jsonl" || !strings.HasPrefix(filepath.Base(path), "rollout-") {
		return provider.Match{}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return provider.Match{}, fmt.Errorf("stat candidate file: %w", err)
	}
	if info.Size() == 0 {
		return provider.Match{}, nil
	}

	header, err := extractHeader(path)
	if err != nil || header.SessionID == "" {
		return provider.Match{}, nil
	}
	return provider.Match{Provider: provider.Codex, Matched: true}, nil
}

// ExtractSessionID returns the session_id carried by the file's
// session_meta record.
func (Discovery) ExtractSessionID(path string) (string, error) {
	header, err := extractHeader(path)
	if err != nil {
		return "", err
	}
	if header.SessionID == "" {
		return "", fmt.Errorf("no session_id in file: %s", path)
	}
	return header.SessionID, nil
}

// ExtractProjectHash hashes the cwd recovered by extractHeader from the
// file's session_meta/turn_context records.
func (Discovery) ExtractProjectHash(path string) (string, bool) {
	header, err := extractHeader(path)
	if err != nil || header.Cwd == "" {
		return "", false
	}
	return provider.ProjectHash(header.Cwd), true
}

// ResolveLogRoot: Codex keeps one flat rollout directory per machine rather
// than partitioning sessions under a per-project subpath, so there is
// nothing to resolve.
func (Discovery) ResolveLogRoot(projectRoot string) (string, bool) {
	return "", false
}

// codexCandidate is one rollout file discovered during a walk, with its
// header already sniffed so ScanSessions never re-reads a file twice.
type codexCandidate struct {
	path   string
	header header
}

// ScanSessions walks logRoot, separates CLI sessions from sub-agent
// ("review") sessions by their session_meta source field, extracts spawn
// markers from every CLI session, and correlates each sub-agent session to
// the CLI session that spawned it by matching entered_review_mode
// timestamps within a 100ms window. Grounded on
// agtrace-providers/src/codex/discovery.rs's scan_sessions, the only one of
// the three providers with real cross-session parent/child correlation
// (spec.md's per-provider table lists it as "None" for Claude Code and
// Gemini CLI).
func (Discovery) ScanSessions(logRoot string) ([]provider.SessionIndex, error) {
	d := Discovery{}

	var cliSessions, subagentSessions []codexCandidate
	walkErr := filepath.WalkDir(logRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		match, err := d.Probe(path)
		if err != nil || !match.Matched {
			return nil
		}
		h, err := extractHeader(path)
		if err != nil || h.SessionID == "" {
			return nil
		}
		candidate := codexCandidate{path: path, header: h}
		if h.SubagentType != "" {
			subagentSessions = append(subagentSessions, candidate)
		} else {
			cliSessions = append(cliSessions, candidate)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan codex sessions under %s: %w", logRoot, walkErr)
	}

	spawnsByParent := make(map[string][]SpawnEvent, len(cliSessions))
	for _, c := range cliSessions {
		spawns, err := extractSpawnEvents(c.path)
		if err == nil && len(spawns) > 0 {
			spawnsByParent[c.header.SessionID] = spawns
		}
	}

	sessions := make([]provider.SessionIndex, 0, len(cliSessions)+len(subagentSessions))
	for _, c := range cliSessions {
		sessions = append(sessions, codexSessionIndex(c))
	}
	for _, c := range subagentSessions {
		idx := codexSessionIndex(c)
		if childTS, err := time.Parse(time.RFC3339Nano, c.header.Timestamp); err == nil {
			if parentID, spawnCtx, ok := correlateSubagent(spawnsByParent, childTS, idx.ProjectHash); ok {
				parent := parentID
				ctx := spawnCtx
				idx.ParentSessionID = &parent
				idx.SpawnedBy = &ctx
			}
		}
		sessions = append(sessions, idx)
	}
	return sessions, nil
}

func codexSessionIndex(c codexCandidate) provider.SessionIndex {
	idx := provider.SessionIndex{SessionID: c.header.SessionID, MainFile: c.path}
	if c.header.Cwd != "" {
		hash := provider.ProjectHash(c.header.Cwd)
		idx.ProjectHash = &hash
	}
	if ts, err := time.Parse(time.RFC3339Nano, c.header.Timestamp); err == nil {
		idx.EarliestTimestamp = ts
	}
	if info, err := os.Stat(c.path); err == nil {
		modTime := info.ModTime()
		idx.LatestModTime = &modTime
	}
	return idx
}

// FindSessionFiles returns every rollout file under logRoot whose
// session_meta id is sessionID. Codex keeps one file per session, so this
// is always at most a single-element slice.
func (Discovery) FindSessionFiles(logRoot, sessionID string) ([]string, error) {
	d := Discovery{}
	var matches []string

	walkErr := filepath.WalkDir(logRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		match, err := d.Probe(path)
		if err != nil || !match.Matched {
			return nil
		}
		h, err := extractHeader(path)
		if err == nil && h.SessionID == sessionID {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("find codex session files under %s: %w", logRoot, walkErr)
	}
	return matches, nil
}

// IsSidechainFile reports whether path's session_meta source field marks it
// as a sub-agent run rather than a top-level CLI session.
func (Discovery) IsSidechainFile(path string) (bool, error) {
	h, err := extractHeader(path)
	if err != nil {
		return false, err
	}
	return h.SubagentType != "", nil
}

// header holds the fields scanned from the first few lines of a rollout
// file, enough to identify and fingerprint a session without a full parse.
type header struct {
	SessionID    string
	Cwd          string
	Timestamp    string
	SubagentType string
}

// extractHeader scans at most the first 20 lines, matching the depth the
// Rust implementation's extract_codex_header used.
func extractHeader(path string) (header, error) {
	file, err := os.Open(path)
	if err != nil {
		return header{}, fmt.Errorf("open candidate file: %w", err)
	}
	defer file.Close()

	var h header
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lines := 0
	for scanner.Scan() && lines < 20 {
		lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			continue
		}
		switch env.Type {
		case "session_meta":
			var meta sessionMetaPayload
			if err := json.Unmarshal(env.Payload, &meta); err != nil {
				continue
			}
			if h.SessionID == "" {
				h.SessionID = meta.ID
			}
			if h.Cwd == "" {
				h.Cwd = meta.Cwd
			}
			if h.Timestamp == "" {
				h.Timestamp = meta.Timestamp
			}
			if h.SubagentType == "" {
				if subagent, ok := subagentType(meta.Source); ok {
					h.SubagentType = subagent
				}
			}
		case "turn_context":
			var turn turnContextPayload
			if err := json.Unmarshal(env.Payload, &turn); err == nil && h.Cwd == "" {
				h.Cwd = turn.Cwd
			}
			if h.Timestamp == "" {
				h.Timestamp = env.Timestamp
			}
		default:
			if h.Timestamp == "" {
				h.Timestamp = env.Timestamp
			}
		}
		if h.SessionID != "" && h.Cwd != "" && h.Timestamp != "" {
			break
		}
	}
	return h, nil
}
