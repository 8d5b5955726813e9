package database

import (
	"database/sql"

	"github.com/influmate/influmate/internal/profile"
)

// ReplaceProfiles replaces the whole profile snapshot in one transaction
// and records the aggregation run. A new run fully supersedes the prior
// snapshot; profiles are never mutated incrementally.
func (db *DB) ReplaceProfiles(profiles []profile.Profile, postCount, droppedCount int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM profiles"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO profiles
		(influencer_id, avg_interactions, avg_engagement_rate, avg_share_rate,
		 avg_comment_rate, avg_reach_rate, followers, location, tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range profiles {
		if _, err := stmt.Exec(p.InfluencerID, p.AvgInteractions, p.AvgEngagementRate,
			p.AvgShareRate, p.AvgCommentRate, p.AvgReachRate, p.Followers,
			p.Location, string(p.Tier)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO snapshot_runs (post_count, dropped_count, profile_count) VALUES (?, ?, ?)",
		postCount, droppedCount, len(profiles),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetProfiles returns the current snapshot ordered by influencer ID.
func (db *DB) GetProfiles() ([]profile.Profile, error) {
	rows, err := db.conn.Query(
		`SELECT influencer_id, avg_interactions, avg_engagement_rate, avg_share_rate,
		 avg_comment_rate, avg_reach_rate, followers, location, tier
		 FROM profiles ORDER BY influencer_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		var p profile.Profile
		var tier string
		if err := rows.Scan(&p.InfluencerID, &p.AvgInteractions, &p.AvgEngagementRate,
			&p.AvgShareRate, &p.AvgCommentRate, &p.AvgReachRate, &p.Followers,
			&p.Location, &tier); err != nil {
			return nil, err
		}
		p.Tier = profile.Tier(tier)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// LatestSnapshotRun returns the most recent aggregation run, or nil if
// profiles were never built.
func (db *DB) LatestSnapshotRun() (*SnapshotRun, error) {
	row := db.conn.QueryRow(
		`SELECT id, generated_at, post_count, dropped_count, profile_count
		 FROM snapshot_runs ORDER BY id DESC LIMIT 1`,
	)
	var r SnapshotRun
	err := row.Scan(&r.ID, &r.GeneratedAt, &r.PostCount, &r.DroppedCount, &r.ProfileCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
