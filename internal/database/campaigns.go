package database

import "database/sql"

// RecordCampaign inserts a processed campaign row. Returns the ID on
// success, 0 if the sheet row was already recorded.
func (db *DB) RecordCampaign(c Campaign) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO campaigns
		 (sheet_row, submitted_at, business, industry, goal, tier_filter,
		  location_filter, contact_email, report_path, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, datetime('now')))`,
		c.SheetRow, c.SubmittedAt, c.Business, c.Industry, c.Goal,
		c.TierFilter, c.LocationFilter, c.ContactEmail, c.ReportPath, c.ProcessedAt,
	)
	if err != nil {
		// Duplicate sheet_row constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetCampaigns returns all recorded campaigns, most recent sheet row first.
func (db *DB) GetCampaigns() ([]Campaign, error) {
	rows, err := db.conn.Query(
		`SELECT id, sheet_row, submitted_at, business, industry, goal,
		 tier_filter, location_filter, contact_email, report_path, processed_at
		 FROM campaigns ORDER BY sheet_row DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.SheetRow, &c.SubmittedAt, &c.Business,
			&c.Industry, &c.Goal, &c.TierFilter, &c.LocationFilter,
			&c.ContactEmail, &c.ReportPath, &c.ProcessedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// GetCampaignByRow returns the campaign recorded for a sheet row, or nil.
func (db *DB) GetCampaignByRow(sheetRow int) (*Campaign, error) {
	row := db.conn.QueryRow(
		`SELECT id, sheet_row, submitted_at, business, industry, goal,
		 tier_filter, location_filter, contact_email, report_path, processed_at
		 FROM campaigns WHERE sheet_row = ?`, sheetRow,
	)
	var c Campaign
	err := row.Scan(&c.ID, &c.SheetRow, &c.SubmittedAt, &c.Business,
		&c.Industry, &c.Goal, &c.TierFilter, &c.LocationFilter,
		&c.ContactEmail, &c.ReportPath, &c.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
