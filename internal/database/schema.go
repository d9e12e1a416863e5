package database

const historySchema = `
CREATE TABLE analysis_runs (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	slug TEXT,
	template_id TEXT,
	score INTEGER NOT NULL DEFAULT 0,
	validated BOOLEAN NOT NULL DEFAULT 0,
	valid BOOLEAN NOT NULL DEFAULT 0,
	saved BOOLEAN NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_runs_started_at ON analysis_runs(started_at);
CREATE INDEX idx_runs_slug ON analysis_runs(slug);
`

// historyMigrations contains incremental schema changes, applied in order
// from the current user_version. Index 0 is empty because version 0 uses the
// base schema.
var historyMigrations = []string{
	"",
}
