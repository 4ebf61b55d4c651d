package geminicli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/traceboard/traceboard/internal/provider"
)

// Discovery identifies Gemini CLI transcripts: session-*.json files holding
// one complete JSON document.
type Discovery struct{}

// Probe reports whether path looks like a Gemini CLI session file.
func (Discovery) Probe(path string) (provider.Match, error) {
	filename := filepath.Base(path)
	if !strings.HasPrefix(filename, "session-") || filepath.Ext(filename) != ".json" {
		return provider.Match{}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return provider.Match{}, fmt.Errorf("stat candidate file: %w", err)
	}
	if info.Size() == 0 {
		return provider.Match{}, nil
	}

	sess, err := readSession(path)
	if err != nil || sess.SessionID == "" {
		return provider.Match{}, nil
	}
	return provider.Match{Provider: provider.GeminiCLI, Matched: true}, nil
}

// ExtractSessionID returns the session_id field of the document.
func (Discovery) ExtractSessionID(path string) (string, error) {
	sess, err := readSession(path)
	if err != nil {
		return "", err
	}
	if sess.SessionID == "" {
		return "", fmt.Errorf("no session_id in file: %s", path)
	}
	return sess.SessionID, nil
}

// ExtractProjectHash returns the document's own project_hash field
// verbatim: Gemini CLI computes and persists this itself, unlike Claude
// Code and Codex where it has to be derived here from a recovered cwd.
func (Discovery) ExtractProjectHash(path string) (string, bool) {
	sess, err := readSession(path)
	if err != nil || sess.ProjectHash == "" {
		return "", false
	}
	return sess.ProjectHash, true
}

// ResolveLogRoot: Gemini CLI writes one flat directory of session-*.json
// documents per machine; there is no per-project subpath to resolve.
func (Discovery) ResolveLogRoot(projectRoot string) (string, bool) {
	return "", false
}

// ScanSessions walks logRoot and returns one SessionIndex per session
// document. Gemini CLI has no native parent/child correlation (spec.md's
// per-provider table lists it as "None" for this container format), so
// every SessionIndex here has nil ParentSessionID/SpawnedBy.
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
		sess, err := readSession(path)
		if err != nil || sess.SessionID == "" {
			return nil
		}

		idx := provider.SessionIndex{SessionID: sess.SessionID, MainFile: path}
		if sess.ProjectHash != "" {
			hash := sess.ProjectHash
			idx.ProjectHash = &hash
		}
		if ts, err := time.Parse(time.RFC3339Nano, sess.StartTime); err == nil {
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
		return nil, fmt.Errorf("scan gemini cli sessions under %s: %w", logRoot, walkErr)
	}
	return sessions, nil
}

// FindSessionFiles returns every session document under logRoot whose
// session_id is sessionID. Gemini CLI keeps one file per session, so this
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
		sess, err := readSession(path)
		if err == nil && sess.SessionID == sessionID {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("find gemini cli session files under %s: %w", logRoot, walkErr)
	}
	return matches, nil
}

// IsSidechainFile always reports false: Gemini CLI has no sub-agent/sidechain
// concept at all, let alone one split across files.
func (Discovery) IsSidechainFile(path string) (bool, error) {
	return false, nil
}

func readSession(path string) (session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return session{}, fmt.Errorf("read gemini cli session file: %w", err)
	}
	var sess session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session{}, fmt.Errorf("decode gemini cli session file: %w", err)
	}
	return sess, nil
}
