// Package index maintains a persistent SQL-backed catalog of projects,
// sessions, and the log files that back them, so a caller can answer "what
// sessions exist" without re-parsing every log on disk.
package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/traceboard/traceboard/internal/provider"
)

// ErrSessionNotFound is returned by GetSession when no row matches.
var ErrSessionNotFound = errors.New("index: session not found")

// ErrProjectNotFound is returned by GetProject when no row matches.
var ErrProjectNotFound = errors.New("index: project not found")

// Store is the SQL-backed index. The index is a derived artifact — always
// reconstructible from the logs themselves — so Open favors dropping and
// recreating the schema over any attempt at in-place migration the moment
// the on-disk user_version disagrees with currentSchemaVersion.
//
// A single *sql.DB is shared with SetMaxOpenConns(1) plus an explicit mutex:
// the index is a long-lived, multi-goroutine service (scan, stream, and any
// number of readers all touch it concurrently), unlike the teacher's own
// flat-file session store, which needed no concurrency control because it
// was single-process-single-writer by construction.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates the database file if absent, and runs the migration
// decision: if the on-disk PRAGMA user_version doesn't match
// currentSchemaVersion, every table is dropped and recreated from scratch
// before user_version is written back. A freshly created file has
// user_version 0, so it always takes the migration path once.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("index: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrateIfNeeded(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) migrateIfNeeded() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("index: read user_version: %w", err)
	}

	if version == currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("index: begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(dropAllTablesDDL); err != nil {
		return fmt.Errorf("index: drop tables: %w", err)
	}
	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("index: create tables: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit migration: %w", err)
	}

	// PRAGMA user_version doesn't accept bound parameters.
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("index: write user_version: %w", err)
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum reclaims space left by deleted rows.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("VACUUM")
	return err
}

func timeToString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringToTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("index: parse timestamp %q: %w", s.String, err)
	}
	return &parsed, nil
}

// UpsertProject inserts or updates a project row, keyed on hash.
func (s *Store) UpsertProject(record ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO projects (hash, root_path, last_scanned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			root_path = excluded.root_path,
			last_scanned_at = excluded.last_scanned_at
	`, record.Hash, record.RootPath, timeToString(record.LastScannedAt))
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}
	return nil
}

// GetProject returns a project by hash, or ErrProjectNotFound.
func (s *Store) GetProject(hash string) (ProjectRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record ProjectRecord
	var rootPath sql.NullString
	var lastScanned sql.NullString

	err := s.db.QueryRow(`
		SELECT hash, root_path, last_scanned_at FROM projects WHERE hash = ?
	`, hash).Scan(&record.Hash, &rootPath, &lastScanned)
	if errors.Is(err, sql.ErrNoRows) {
		return ProjectRecord{}, ErrProjectNotFound
	}
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("index: get project: %w", err)
	}

	if rootPath.Valid {
		record.RootPath = &rootPath.String
	}
	record.LastScannedAt, err = stringToTime(lastScanned)
	if err != nil {
		return ProjectRecord{}, err
	}

	return record, nil
}

// ListProjects returns every known project.
func (s *Store) ListProjects() ([]ProjectRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT hash, root_path, last_scanned_at FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("index: list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]ProjectRecord, 0)
	for rows.Next() {
		var record ProjectRecord
		var rootPath, lastScanned sql.NullString
		if err := rows.Scan(&record.Hash, &rootPath, &lastScanned); err != nil {
			return nil, fmt.Errorf("index: scan project: %w", err)
		}
		if rootPath.Valid {
			record.RootPath = &rootPath.String
		}
		record.LastScannedAt, err = stringToTime(lastScanned)
		if err != nil {
			return nil, err
		}
		projects = append(projects, record)
	}
	return projects, rows.Err()
}

// UpsertSession inserts or updates a session row, keyed on id.
func (s *Store) UpsertSession(record SessionRecord) error {
	var spawnedBy []byte
	if record.SpawnedBy != nil {
		encoded, err := json.Marshal(record.SpawnedBy)
		if err != nil {
			return fmt.Errorf("index: encode spawned_by: %w", err)
		}
		spawnedBy = encoded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sessions (
			id, project_hash, repository_hash, provider, start_ts, end_ts,
			snippet, is_valid, parent_session_id, spawned_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_hash = excluded.project_hash,
			repository_hash = excluded.repository_hash,
			provider = excluded.provider,
			start_ts = excluded.start_ts,
			end_ts = excluded.end_ts,
			snippet = excluded.snippet,
			is_valid = excluded.is_valid,
			parent_session_id = excluded.parent_session_id,
			spawned_by = excluded.spawned_by
	`,
		record.ID, record.ProjectHash, record.RepositoryHash, record.Provider,
		timeToString(record.StartTS), timeToString(record.EndTS), record.Snippet,
		record.IsValid, record.ParentSessionID, nullableBytes(spawnedBy),
	)
	if err != nil {
		return fmt.Errorf("index: upsert session: %w", err)
	}
	return nil
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

const sessionSelectColumns = `
	id, project_hash, repository_hash, provider, start_ts, end_ts,
	snippet, is_valid, parent_session_id, spawned_by
`

func scanSession(scanner interface {
	Scan(dest ...any) error
}) (SessionRecord, error) {
	var record SessionRecord
	var repositoryHash, startTS, endTS, snippet, parentSessionID, spawnedBy sql.NullString

	err := scanner.Scan(
		&record.ID, &record.ProjectHash, &repositoryHash, &record.Provider,
		&startTS, &endTS, &snippet, &record.IsValid, &parentSessionID, &spawnedBy,
	)
	if err != nil {
		return SessionRecord{}, err
	}

	if repositoryHash.Valid {
		record.RepositoryHash = &repositoryHash.String
	}
	if snippet.Valid {
		record.Snippet = &snippet.String
	}
	if parentSessionID.Valid {
		record.ParentSessionID = &parentSessionID.String
	}

	record.StartTS, err = stringToTime(startTS)
	if err != nil {
		return SessionRecord{}, err
	}
	record.EndTS, err = stringToTime(endTS)
	if err != nil {
		return SessionRecord{}, err
	}

	if spawnedBy.Valid {
		var ctx provider.SpawnContext
		if err := json.Unmarshal([]byte(spawnedBy.String), &ctx); err != nil {
			return SessionRecord{}, fmt.Errorf("index: decode spawned_by: %w", err)
		}
		record.SpawnedBy = &ctx
	}

	return record, nil
}

// GetSession returns a session by id, or ErrSessionNotFound.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+sessionSelectColumns+` FROM sessions WHERE id = ?`, id)
	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("index: get session: %w", err)
	}
	return record, nil
}

// GetChildSessions returns every session whose parent_session_id is id.
func (s *Store) GetChildSessions(parentID string) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT `+sessionSelectColumns+` FROM sessions WHERE parent_session_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("index: get child sessions: %w", err)
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

// ListSessions returns sessions matching filter, ordered by order, limited
// to limit rows (0 means unlimited).
func (s *Store) ListSessions(filter SessionFilter, order SessionOrder, limit int) ([]SessionRecord, error) {
	query := `SELECT ` + sessionSelectColumns + ` FROM sessions WHERE 1 = 1`
	args := make([]any, 0)

	if filter.ProjectHash != nil {
		query += ` AND project_hash = ?`
		args = append(args, *filter.ProjectHash)
	}
	if filter.Provider != nil {
		query += ` AND provider = ?`
		args = append(args, *filter.Provider)
	}
	if filter.Since != nil {
		query += ` AND start_ts >= ?`
		args = append(args, timeToString(filter.Since))
	}
	if filter.Until != nil {
		query += ` AND start_ts <= ?`
		args = append(args, timeToString(filter.Until))
	}
	if filter.TopLevelOnly {
		query += ` AND parent_session_id IS NULL`
	}

	switch order {
	case SessionOrderStartAsc:
		query += ` ORDER BY start_ts ASC`
	default:
		query += ` ORDER BY start_ts DESC`
	}

	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessionRows(rows)
}

func scanSessionRows(rows *sql.Rows) ([]SessionRecord, error) {
	sessions := make([]SessionRecord, 0)
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan session: %w", err)
		}
		sessions = append(sessions, record)
	}
	return sessions, rows.Err()
}

// UpsertLogFile inserts or updates a log_files row, keyed on path.
func (s *Store) UpsertLogFile(record LogFileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO log_files (path, session_id, role, file_size, mod_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			session_id = excluded.session_id,
			role = excluded.role,
			file_size = excluded.file_size,
			mod_time = excluded.mod_time
	`, record.Path, record.SessionID, record.Role, record.FileSize, timeToString(record.ModTime))
	if err != nil {
		return fmt.Errorf("index: upsert log file: %w", err)
	}
	return nil
}

// GetSessionFiles returns every log file backing a session.
func (s *Store) GetSessionFiles(sessionID string) ([]LogFileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT path, session_id, role, file_size, mod_time FROM log_files WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("index: get session files: %w", err)
	}
	defer rows.Close()

	return scanLogFileRows(rows)
}

// AllLogFiles returns every tracked log file, used by incremental scan to
// build its fingerprint set without re-reading every session row.
func (s *Store) AllLogFiles() ([]LogFileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT path, session_id, role, file_size, mod_time FROM log_files`)
	if err != nil {
		return nil, fmt.Errorf("index: list log files: %w", err)
	}
	defer rows.Close()

	return scanLogFileRows(rows)
}

func scanLogFileRows(rows *sql.Rows) ([]LogFileRecord, error) {
	files := make([]LogFileRecord, 0)
	for rows.Next() {
		var record LogFileRecord
		var modTime sql.NullString
		if err := rows.Scan(&record.Path, &record.SessionID, &record.Role, &record.FileSize, &modTime); err != nil {
			return nil, fmt.Errorf("index: scan log file: %w", err)
		}
		parsed, err := stringToTime(modTime)
		if err != nil {
			return nil, err
		}
		record.ModTime = parsed
		files = append(files, record)
	}
	return files, rows.Err()
}
