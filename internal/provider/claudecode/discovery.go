package claudecode

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
	"github.com/traceboard/traceboard/internal/streamjson"
)

// Discovery identifies Claude Code session transcripts: line-delimited
// JSONL files whose first non-blank line decodes as a stream-json envelope
// and whose filename is the session UUID.
type Discovery struct{}

// Probe reports whether path looks like a Claude Code transcript.
func (Discovery) Probe(path string) (provider.Match, error) {
	if filepath.Ext(path) != ".jsonl" {
		return provider.Match{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return provider.Match{}, fmt.Errorf("open candidate file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var envelope streamjson.Envelope
		if decodeErr := json.Unmarshal([]byte(line), &envelope); decodeErr != nil {
			return provider.Match{}, nil
		}
		switch envelope.Type {
		case "user", "assistant", "system", "summary":
			return provider.Match{Provider: provider.ClaudeCode, Matched: true}, nil
		default:
			return provider.Match{}, nil
		}
	}
	return provider.Match{}, nil
}

// ExtractSessionID returns the session id, which Claude Code uses as both
// the filename stem and the session_id field of every envelope.
func (Discovery) ExtractSessionID(path string) (string, error) {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// ExtractProjectHash scans for the system/init envelope's cwd field, which
// Claude Code always writes as the first event of a transcript, and hashes
// it via provider.ProjectHash.
func (Discovery) ExtractProjectHash(path string) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var envelope streamjson.Envelope
		if json.Unmarshal([]byte(line), &envelope) != nil {
			continue
		}
		if envelope.Type != "system" || envelope.Subtype != "init" {
			continue
		}
		var init streamjson.SystemInitEvent
		if err := json.Unmarshal([]byte(line), &init); err != nil || init.CWD == "" {
			return "", false
		}
		return provider.ProjectHash(init.CWD), true
	}
	return "", false
}

// ResolveLogRoot: Claude Code transcripts live flat under one log root per
// machine (~/.claude/projects/<hash>/<session>.jsonl is itself discovered by
// walking, not resolved from a project path), so there is nothing to
// resolve.
func (Discovery) ResolveLogRoot(projectRoot string) (string, bool) {
	return "", false
}

// ScanSessions walks logRoot and returns one SessionIndex per recognized
// transcript. Claude Code has no cross-session parent/child correlation
// (its sub-agent "sidechains" are interleaved in the same file via
// event.StreamID, not split into separate sessions), so every SessionIndex
// here has nil ParentSessionID/SpawnedBy.
func (Discovery) ScanSessions(logRoot string) ([]provider.SessionIndex, error) {
	d := Discovery{}
	var sessions []provider.SessionIndex

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
		sessionID, err := d.ExtractSessionID(path)
		if err != nil || sessionID == "" {
			return nil
		}

		idx := provider.SessionIndex{SessionID: sessionID, MainFile: path}
		if hash, ok := d.ExtractProjectHash(path); ok {
			idx.ProjectHash = &hash
		}
		if ts, ok := earliestTimestamp(path); ok {
			idx.EarliestTimestamp = ts
		}
		if info, err := entry.Info(); err == nil {
			modTime := info.ModTime()
			idx.LatestModTime = &modTime
		}
		sessions = append(sessions, idx)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan claude code sessions under %s: %w", logRoot, walkErr)
	}
	return sessions, nil
}

// FindSessionFiles returns every transcript under logRoot whose session id
// is sessionID. Claude Code keeps one file per session, so this is always
// at most a single-element slice.
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
		id, err := d.ExtractSessionID(path)
		if err == nil && id == sessionID {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("find claude code session files under %s: %w", logRoot, walkErr)
	}
	return matches, nil
}

// IsSidechainFile always reports false: a Claude Code sub-agent invocation
// is a stream within a file (event.StreamID.Sidechain), never a file of its
// own.
func (Discovery) IsSidechainFile(path string) (bool, error) {
	return false, nil
}

// earliestTimestamp returns the first timestamp carried by any envelope in
// path, sniffed without a full parse.
func earliestTimestamp(path string) (time.Time, bool) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var envelope streamjson.Envelope
		if json.Unmarshal([]byte(line), &envelope) != nil || envelope.Timestamp == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, envelope.Timestamp)
		if err != nil {
			continue
		}
		return ts, true
	}
	return time.Time{}, false
}
