package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS wrestlers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    promotion TEXT NOT NULL DEFAULT '',
    is_champion INTEGER NOT NULL DEFAULT 0,
    championship_title TEXT NOT NULL DEFAULT '',
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS content_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    link TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    snippet TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL CHECK(kind IN ('news', 'reddit')),
    engagement INTEGER NOT NULL DEFAULT 0,
    published_at TEXT,
    collected_at TEXT NOT NULL,
    content_fetched INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS analysis_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    scoring_preset TEXT NOT NULL,
    item_count INTEGER NOT NULL DEFAULT 0,
    wrestler_count INTEGER NOT NULL DEFAULT 0,
    digest_markdown TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS wrestler_metrics (
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    wrestler_id INTEGER NOT NULL REFERENCES wrestlers(id) ON DELETE CASCADE,
    total_mentions INTEGER NOT NULL,
    push_score REAL NOT NULL,
    burial_score REAL NOT NULL,
    momentum_score REAL NOT NULL,
    popularity_score INTEGER NOT NULL,
    sentiment_score REAL NOT NULL,
    trend TEXT NOT NULL CHECK(trend IN ('push', 'burial', 'stable')),
    is_on_fire INTEGER NOT NULL DEFAULT 0,
    change_24h REAL NOT NULL DEFAULT 0,
    change_source TEXT NOT NULL DEFAULT 'none',
    confidence TEXT NOT NULL DEFAULT 'low',
    computed_at TEXT NOT NULL,
    PRIMARY KEY (run_id, wrestler_id)
);

CREATE TABLE IF NOT EXISTS mentions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    wrestler_id INTEGER NOT NULL REFERENCES wrestlers(id) ON DELETE CASCADE,
    item_id INTEGER NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    sentiment REAL NOT NULL,
    mentioned_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_published ON content_items(published_at);
CREATE INDEX IF NOT EXISTS idx_items_collected ON content_items(collected_at);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON analysis_runs(finished_at);
CREATE INDEX IF NOT EXISTS idx_mentions_run ON mentions(run_id, wrestler_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index metric snapshots by wrestler",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_metrics_wrestler ON wrestler_metrics(wrestler_id, computed_at)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
