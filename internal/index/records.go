package index

import (
	"time"

	"github.com/traceboard/traceboard/internal/provider"
)

// ProjectRecord is one row of the projects table: a filesystem root the
// scanner discovered sessions under, identified by its content hash.
type ProjectRecord struct {
	Hash           string
	RootPath       *string
	LastScannedAt  *time.Time
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID              string
	ProjectHash     string
	RepositoryHash  *string
	Provider        string
	StartTS         *time.Time
	EndTS           *time.Time
	Snippet         *string
	IsValid         bool
	ParentSessionID *string
	SpawnedBy       *provider.SpawnContext
}

// LogFileRecord is one row of the log_files table: a single file backing a
// session (the main transcript, or a sidechain file).
type LogFileRecord struct {
	Path      string
	SessionID string
	Role      string
	FileSize  int64
	ModTime   *time.Time
}

// SessionOrder controls list_sessions ordering.
type SessionOrder string

const (
	// SessionOrderStartDesc orders by start_ts, most recent first. It is
	// the default: callers browsing an index almost always want recent
	// sessions at the top.
	SessionOrderStartDesc SessionOrder = "start_ts_desc"
	SessionOrderStartAsc  SessionOrder = "start_ts_asc"
)

// DefaultSessionOrder is the order applied when a caller passes "".
func DefaultSessionOrder() SessionOrder {
	return SessionOrderStartDesc
}

// SessionFilter narrows list_sessions.
type SessionFilter struct {
	ProjectHash  *string
	Provider     *string
	Since        *time.Time
	Until        *time.Time
	TopLevelOnly bool
}
