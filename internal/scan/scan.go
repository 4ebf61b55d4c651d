// Package scan walks configured log roots, discovers sessions belonging to
// the registered providers via their Discovery.ScanSessions, and upserts
// them into the persistent index. Every provider adapter in this repo folds
// a whole session's main conversation into a single log file and reports
// any cross-session parent/child correlation (Codex's sub-agent spawns)
// directly on the returned SessionIndex, so scanning never needs a
// separate main+sidechain grouping pass of its own.
package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/traceboard/traceboard/internal/assembler"
	"github.com/traceboard/traceboard/internal/index"
	"github.com/traceboard/traceboard/internal/provider"
)

// RootConfig pairs a provider with the filesystem root its logs live under.
type RootConfig struct {
	Provider provider.Name
	LogRoot  string
}

// ProjectScope narrows which project's sessions a scan keeps.
type ProjectScope struct {
	all         bool
	projectHash string
}

// AllProjects keeps every discovered session regardless of project.
func AllProjects() ProjectScope { return ProjectScope{all: true} }

// SpecificProject keeps only sessions whose recovered project hash equals
// hash.
func SpecificProject(hash string) ProjectScope { return ProjectScope{projectHash: hash} }

func (scope ProjectScope) keeps(hash string) bool {
	if scope.all {
		return true
	}
	return hash == scope.projectHash
}

// fingerprint is the (size, mtime) pair used to detect whether a file has
// changed since the last scan without re-reading its contents.
type fingerprint struct {
	size    int64
	modTime string
}

func fingerprintOf(info os.FileInfo) fingerprint {
	return fingerprint{size: info.Size(), modTime: info.ModTime().UTC().Format(time.RFC3339Nano)}
}

// ProgressType discriminates ProgressEvent.
type ProgressType string

const (
	ProgressRootSkipped ProgressType = "root_skipped"
	ProgressCompleted   ProgressType = "completed"
)

// ProgressEvent is one update emitted during a scan. Progress is an
// abstract event stream; the caller (CLI, TUI, MCP) decides how to render
// it.
type ProgressEvent struct {
	Type        ProgressType
	RootSkipped *RootSkipped
	Completed   *Completed
}

// RootSkipped reports a configured log root missing from disk.
type RootSkipped struct {
	Provider provider.Name
	LogRoot  string
}

// Completed is the terminal event of a scan pass.
type Completed struct {
	TotalSessions int
	ScannedFiles  int
	SkippedFiles  int
}

// Service runs scans against a persistent index.
type Service struct {
	Store    *index.Store
	adapters map[provider.Name]provider.Adapter
}

// NewService constructs a Service, keying adapters by name for lookup
// against each RootConfig.Provider.
func NewService(store *index.Store, adapters []provider.Adapter) *Service {
	byName := make(map[provider.Name]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name] = a
	}
	return &Service{Store: store, adapters: byName}
}

// ScanRoot runs one scan pass over every configured (provider, log_root)
// pair, upserting discovered sessions into the index. force ignores the
// store's existing fingerprints so every matching file is re-parsed and
// re-upserted regardless of whether it changed.
//
// A rescan over unchanged filesystem state produces no writes and reports
// every file skipped — the index only touches the store when a file's
// (size, mtime) fingerprint actually differs.
func (s *Service) ScanRoot(roots []RootConfig, scope ProjectScope, force bool, onProgress func(ProgressEvent)) error {
	knownFiles, err := s.loadKnownFingerprints(force)
	if err != nil {
		return err
	}

	var totalSessions, scannedFiles, skippedFiles int

	for _, root := range roots {
		adapter, ok := s.adapters[root.Provider]
		if !ok {
			return fmt.Errorf("scan: unknown provider %q", root.Provider)
		}

		info, statErr := os.Stat(root.LogRoot)
		if statErr != nil || !info.IsDir() {
			if onProgress != nil {
				onProgress(ProgressEvent{Type: ProgressRootSkipped, RootSkipped: &RootSkipped{
					Provider: root.Provider, LogRoot: root.LogRoot,
				}})
			}
			continue
		}

		sessions, scanErr := adapter.Discovery.ScanSessions(root.LogRoot)
		if scanErr != nil {
			return fmt.Errorf("scan: discover sessions under %s: %w", root.LogRoot, scanErr)
		}

		for _, sessionIdx := range sessions {
			scanned, skipped, indexErr := s.indexSession(adapter, root, sessionIdx, scope, knownFiles)
			if indexErr != nil {
				return indexErr
			}
			if scanned {
				totalSessions++
				scannedFiles++
			}
			if skipped {
				skippedFiles++
			}
		}
	}

	if onProgress != nil {
		onProgress(ProgressEvent{Type: ProgressCompleted, Completed: &Completed{
			TotalSessions: totalSessions,
			ScannedFiles:  scannedFiles,
			SkippedFiles:  skippedFiles,
		}})
	}

	return nil
}

func (s *Service) loadKnownFingerprints(force bool) (map[string]fingerprint, error) {
	known := make(map[string]fingerprint)
	if force {
		return known, nil
	}

	stored, err := s.Store.AllLogFiles()
	if err != nil {
		return nil, fmt.Errorf("scan: load indexed files: %w", err)
	}
	for _, f := range stored {
		modTime := ""
		if f.ModTime != nil {
			modTime = f.ModTime.UTC().Format(time.RFC3339Nano)
		}
		known[f.Path] = fingerprint{size: f.FileSize, modTime: modTime}
	}
	return known, nil
}

// indexSession upserts one SessionIndex discovered by adapter.Discovery's
// ScanSessions, provided it's in scope. scanned reports whether the file
// was newly (re-)indexed; skipped reports whether it matched an unchanged
// fingerprint and was left alone.
func (s *Service) indexSession(
	adapter provider.Adapter,
	root RootConfig,
	sessionIdx provider.SessionIndex,
	scope ProjectScope,
	knownFiles map[string]fingerprint,
) (scanned bool, skipped bool, err error) {
	path := sessionIdx.MainFile

	fileInfo, statErr := os.Stat(path)
	if statErr != nil {
		return false, false, nil
	}
	fp := fingerprintOf(fileInfo)

	projectHash := ""
	if sessionIdx.ProjectHash != nil {
		projectHash = *sessionIdx.ProjectHash
	} else {
		// No cwd recoverable from this file: index it under a synthetic,
		// per-file "orphaned" project rather than dropping it.
		projectHash = provider.ProjectHash(path)
	}
	if !scope.keeps(projectHash) {
		return false, false, nil
	}

	if existing, ok := knownFiles[path]; ok && existing == fp {
		return false, true, nil
	}

	events, parseErr := adapter.Parser.ParseFile(path)
	sess := (*assembler.Session)(nil)
	isValid := parseErr == nil
	if isValid {
		sess = assembler.Assemble(events)
	}

	if err := s.Store.UpsertProject(index.ProjectRecord{
		Hash: projectHash, RootPath: &root.LogRoot,
	}); err != nil {
		return false, false, fmt.Errorf("scan: upsert project: %w", err)
	}

	record := index.SessionRecord{
		ID:              sessionIdx.SessionID,
		ProjectHash:     projectHash,
		Provider:        string(root.Provider),
		IsValid:         isValid,
		ParentSessionID: sessionIdx.ParentSessionID,
		SpawnedBy:       sessionIdx.SpawnedBy,
	}
	if sess != nil {
		record.StartTS = &sess.StartTime
		record.EndTS = sess.EndTime
		record.Snippet = snippetOf(sess)
	} else if !sessionIdx.EarliestTimestamp.IsZero() {
		startTS := sessionIdx.EarliestTimestamp
		record.StartTS = &startTS
	}
	if err := s.Store.UpsertSession(record); err != nil {
		return false, false, fmt.Errorf("scan: upsert session: %w", err)
	}

	modTime := fileInfo.ModTime()
	if err := s.Store.UpsertLogFile(index.LogFileRecord{
		Path: path, SessionID: sessionIdx.SessionID, Role: "main", FileSize: fp.size, ModTime: &modTime,
	}); err != nil {
		return false, false, fmt.Errorf("scan: upsert log file: %w", err)
	}

	return true, false, nil
}

// snippetOf builds a short preview from the first turn's user message, used
// by list views that show one line per session.
func snippetOf(sess *assembler.Session) *string {
	for _, turn := range sess.Turns {
		if turn.User.Content == "" {
			continue
		}
		snippet := truncate(turn.User.Content, 200)
		return &snippet
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
