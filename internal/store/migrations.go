package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            DATETIME NOT NULL,
	action        TEXT NOT NULL,
	supplier      TEXT NOT NULL DEFAULT '',
	vendor_emails TEXT NOT NULL DEFAULT '[]',
	details       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL CHECK(kind IN ('fetch', 'dispatch')),
	triggered_by TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	total        INTEGER NOT NULL DEFAULT 0,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_action ON audit_entries(action);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_audit_entries_supplier_ts
	ON audit_entries(supplier, ts);

CREATE INDEX IF NOT EXISTS idx_runs_kind_started
	ON runs(kind, started_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
