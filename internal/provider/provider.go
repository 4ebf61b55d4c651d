// Package provider declares the three-trait contract every supported coding
// agent runtime implements: Discovery locates and identifies its log files,
// Parser normalizes them into event.AgentEvent, and ToolMapper maps its
// tool-call shapes into the provider-neutral ToolCallPayload union.
//
// Each provider (claudecode, codex, geminicli) is a free-standing trio of
// types with no shared base — extending to a new runtime means adding one
// more package, not widening an inheritance hierarchy.
package provider

import (
	"encoding/json"
	"time"

	"github.com/traceboard/traceboard/internal/event"
)

// Name identifies a supported provider dialect.
type Name string

const (
	ClaudeCode Name = "claude_code"
	Codex      Name = "codex"
	GeminiCLI  Name = "gemini_cli"
)

// Match reports whether a Discovery probe recognized a candidate file, and
// if so, which provider it belongs to.
type Match struct {
	Provider Name
	Matched  bool
}

// SpawnContext locates the turn/step in a parent session that spawned a
// sidechain or sub-agent session, when the provider can express the
// correlation (currently only Codex's entered_review_mode markers).
type SpawnContext struct {
	TurnIndex int
	StepIndex int
}

// SessionIndex is one session a ScanSessions pass discovered: its identity
// plus whatever correlation metadata the provider could recover without a
// full Parser pass.
type SessionIndex struct {
	SessionID string
	// EarliestTimestamp is the first recorded event time in MainFile, the
	// zero value if none could be sniffed.
	EarliestTimestamp time.Time
	// LatestModTime is the most recent mtime across MainFile and
	// SidechainFiles.
	LatestModTime *time.Time
	MainFile      string
	// SidechainFiles lists any additional files backing this session
	// beyond MainFile. None of traceboard's three providers currently
	// split a session across files this way (Claude Code's sidechains are
	// interleaved in the main file via StreamID; Codex correlates
	// sub-agent runs as distinct sessions, not distinct files of the same
	// one) — the field exists because spec.md names it as part of the
	// Discovery contract for providers that do.
	SidechainFiles []string
	// ProjectHash is the recovered project hash (see
	// Discovery.ExtractProjectHash), standing in for spec.md's "inferred
	// project root": Discovery only ever exposes the hashed form here,
	// never the raw cwd path the hash was computed from.
	ProjectHash *string
	Snippet     *string
	// ParentSessionID and SpawnedBy are set only when the provider
	// discovered this session was spawned by another one (Codex's
	// entered_review_mode correlation); nil otherwise.
	ParentSessionID *string
	SpawnedBy       *SpawnContext
}

// Discovery locates and identifies a provider's session log files within a
// scan root.
type Discovery interface {
	// Probe inspects a single file (its path and, if needed, a content
	// sniff) and reports whether it belongs to this provider.
	Probe(path string) (Match, error)
	// ExtractSessionID returns the session id embedded in the file.
	ExtractSessionID(path string) (string, error)
	// ExtractProjectHash returns the hash of the project (workspace) this
	// session belongs to, and whether one could be determined. Returns
	// false when no cwd or equivalent project context is recoverable from
	// the file; callers fall back to a synthetic per-file "orphaned"
	// project in that case rather than failing the scan.
	ExtractProjectHash(path string) (string, bool)

	// ResolveLogRoot maps a project's working directory to the relative
	// subpath under this provider's log root that holds that project's
	// sessions, for providers that partition logs per project hash
	// directory. Returns false when the provider keeps one flat log root
	// to walk instead — true of all three providers implemented here, so
	// each returns ("", false) unconditionally; the method exists so a
	// future per-project-directory provider can implement it without
	// widening the interface.
	ResolveLogRoot(projectRoot string) (string, bool)
	// ScanSessions walks logRoot and returns one SessionIndex per session
	// recognized under it, including cross-file/cross-session parent-child
	// correlation where the provider can express it.
	ScanSessions(logRoot string) ([]SessionIndex, error)
	// FindSessionFiles returns every file under logRoot belonging to
	// sessionID: MainFile plus any SidechainFiles.
	FindSessionFiles(logRoot, sessionID string) ([]string, error)
	// IsSidechainFile reports whether path is a sub-agent's own file
	// rather than a top-level session file.
	IsSidechainFile(path string) (bool, error)
}

// Parser normalizes one provider's log file into the common event model.
// Parsing must be idempotent: parsing the same file contents twice produces
// byte-for-byte identical events, since event ids are derived deterministically.
type Parser interface {
	ParseFile(path string) ([]event.AgentEvent, error)
}

// ToolMapper normalizes a provider's raw tool-call name and arguments into
// the shared ToolCallPayload union. A recognized name whose arguments don't
// match the expected shape still returns a value — it degrades to the
// Generic variant rather than erroring.
type ToolMapper interface {
	Normalize(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload
}

// Adapter bundles one provider's three traits for callers that operate over
// "whichever provider this file belongs to" (the scan service, the live
// streamer).
type Adapter struct {
	Name       Name
	Discovery  Discovery
	Parser     Parser
	ToolMapper ToolMapper
}
