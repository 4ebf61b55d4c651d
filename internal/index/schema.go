package index

// currentSchemaVersion is the PRAGMA user_version this package writes on a
// fresh create or a forced migration. Bump it whenever the table shapes
// below change; Store.Open will drop and recreate everything rather than
// attempt an in-place migration (see Open's doc comment).
const currentSchemaVersion = 6

const schemaDDL = `
CREATE TABLE projects (
	hash TEXT PRIMARY KEY,
	root_path TEXT,
	last_scanned_at TEXT
);

CREATE TABLE sessions (
	id TEXT PRIMARY KEY,
	project_hash TEXT NOT NULL,
	repository_hash TEXT,
	provider TEXT NOT NULL,
	start_ts TEXT,
	end_ts TEXT,
	snippet TEXT,
	is_valid BOOLEAN NOT NULL DEFAULT 1,
	parent_session_id TEXT,
	spawned_by TEXT,
	FOREIGN KEY (project_hash) REFERENCES projects(hash),
	FOREIGN KEY (parent_session_id) REFERENCES sessions(id)
);

CREATE TABLE log_files (
	path TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	file_size INTEGER,
	mod_time TEXT,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX idx_sessions_project ON sessions(project_hash);
CREATE INDEX idx_sessions_ts ON sessions(start_ts DESC);
CREATE INDEX idx_files_session ON log_files(session_id);
`

const dropAllTablesDDL = `
DROP TABLE IF EXISTS log_files;
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS projects;
`
