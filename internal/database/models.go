package database

// Campaign is one processed intake row.
type Campaign struct {
	ID             int64
	SheetRow       int
	SubmittedAt    string
	Business       string
	Industry       string
	Goal           string
	TierFilter     string
	LocationFilter string
	ContactEmail   string
	ReportPath     string
	ProcessedAt    *string
}

// SnapshotRun records one profile aggregation run.
type SnapshotRun struct {
	ID           int64
	GeneratedAt  *string
	PostCount    int
	DroppedCount int
	ProfileCount int
}

// Stats contains aggregate database statistics.
type Stats struct {
	Profiles       int
	Campaigns      int
	SnapshotRuns   int
	LastSnapshotAt *string
	LastCampaignAt *string
}
