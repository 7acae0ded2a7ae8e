package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// The snapshot schema mirrors the in-memory view verbatim, including
// ordering and possible duplicate ids after a fetch/push race, so rows
// are keyed by (user_id, position) rather than by record id.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	user_id  TEXT PRIMARY KEY,
	saved_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	user_id       TEXT NOT NULL,
	position      INTEGER NOT NULL,
	id            TEXT NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'not_started',
	priority      TEXT NOT NULL DEFAULT 'medium',
	due_at        DATETIME,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME,
	creator_id    TEXT NOT NULL DEFAULT '',
	assignee_id   TEXT NOT NULL DEFAULT '',
	creator_name  TEXT NOT NULL DEFAULT '',
	assignee_name TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, position)
);

CREATE TABLE IF NOT EXISTS notifications (
	user_id    TEXT NOT NULL,
	position   INTEGER NOT NULL,
	id         TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	task_id    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, position)
);

CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
