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
CREATE TABLE IF NOT EXISTS profiles (
    influencer_id TEXT PRIMARY KEY,
    avg_interactions REAL NOT NULL DEFAULT 0,
    avg_engagement_rate REAL NOT NULL DEFAULT 0,
    avg_share_rate REAL NOT NULL DEFAULT 0,
    avg_comment_rate REAL NOT NULL DEFAULT 0,
    avg_reach_rate REAL NOT NULL DEFAULT 0,
    followers INTEGER NOT NULL DEFAULT 0,
    location TEXT NOT NULL DEFAULT '',
    tier TEXT NOT NULL DEFAULT 'Unknown'
);

CREATE TABLE IF NOT EXISTS snapshot_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    generated_at TEXT DEFAULT (datetime('now')),
    post_count INTEGER DEFAULT 0,
    dropped_count INTEGER DEFAULT 0,
    profile_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS campaigns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sheet_row INTEGER UNIQUE NOT NULL,
    submitted_at TEXT,
    business TEXT NOT NULL DEFAULT '',
    industry TEXT NOT NULL DEFAULT '',
    goal TEXT NOT NULL DEFAULT '',
    tier_filter TEXT NOT NULL DEFAULT '',
    location_filter TEXT NOT NULL DEFAULT '',
    contact_email TEXT NOT NULL DEFAULT '',
    report_path TEXT NOT NULL DEFAULT '',
    processed_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_profiles_followers ON profiles(followers);
CREATE INDEX IF NOT EXISTS idx_campaigns_processed ON campaigns(processed_at);
`)
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
