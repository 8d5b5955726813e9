package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/influmate/influmate/internal/database"
	"github.com/influmate/influmate/internal/profile"
	"github.com/influmate/influmate/internal/scoring"
)

type fakeDispatcher struct {
	campaign database.Campaign
	ranked   []scoring.ScoredProfile
	calls    int
	err      error
}

func (f *fakeDispatcher) Deliver(ctx context.Context, c database.Campaign, ranked []scoring.ScoredProfile) (string, error) {
	f.calls++
	f.campaign = c
	f.ranked = ranked
	if f.err != nil {
		return "", f.err
	}
	return "/reports/campaign-row" + c.Business + ".md", nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProfiles(t *testing.T, db *database.DB) {
	t.Helper()
	err := db.ReplaceProfiles([]profile.Profile{
		{
			InfluencerID:      "inf_a",
			AvgEngagementRate: 0.05,
			AvgShareRate:      0.01,
			AvgCommentRate:    0.02,
			AvgReachRate:      0.3,
			Followers:         50_000,
			Location:          "Vietnam",
			Tier:              profile.TierMicro,
		},
		{
			InfluencerID:      "inf_b",
			AvgEngagementRate: 0.02,
			AvgShareRate:      0.005,
			AvgCommentRate:    0.01,
			AvgReachRate:      0.2,
			Followers:         400_000,
			Location:          "Thailand",
			Tier:              profile.TierMacro,
		},
	}, 10, 0)
	if err != nil {
		t.Fatalf("seeding profiles: %v", err)
	}
}

// The intake sheet columns: timestamp, business, industry, goal, tier
// filter, location filter, then the email in its configured column.
func intakeRow(email string) []string {
	return []string{
		"2025-05-12 09:30", "Aurora Coffee", "F&B", "brand awareness",
		"", "", "", "", "", "", "", email,
	}
}

func TestProcessDeliversAndRecords(t *testing.T) {
	db := openTestDB(t)
	seedProfiles(t, db)

	disp := &fakeDispatcher{}
	proc := New(db, scoring.NewEngine(nil), disp, 3, 11)

	summary, err := proc.Process(context.Background(), 4, intakeRow("owner@aurora.example"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(summary, "2 influencers") {
		t.Errorf("summary = %q", summary)
	}

	if disp.calls != 1 {
		t.Fatalf("dispatcher called %d times, want 1", disp.calls)
	}
	if disp.campaign.Business != "Aurora Coffee" {
		t.Errorf("business = %q", disp.campaign.Business)
	}
	if disp.campaign.ContactEmail != "owner@aurora.example" {
		t.Errorf("contact email = %q", disp.campaign.ContactEmail)
	}
	if len(disp.ranked) != 2 {
		t.Errorf("ranked %d profiles, want 2", len(disp.ranked))
	}

	stored, err := db.GetCampaignByRow(4)
	if err != nil {
		t.Fatalf("GetCampaignByRow failed: %v", err)
	}
	if stored == nil {
		t.Fatal("campaign was not recorded")
	}
	if stored.Goal != "brand awareness" {
		t.Errorf("stored goal = %q", stored.Goal)
	}
	if stored.ProcessedAt == nil {
		t.Error("ProcessedAt not set")
	}
}

func TestProcessFailsWithoutSnapshot(t *testing.T) {
	db := openTestDB(t)
	disp := &fakeDispatcher{}
	proc := New(db, scoring.NewEngine(nil), disp, 3, 11)

	if _, err := proc.Process(context.Background(), 2, intakeRow("x@y.example")); err == nil {
		t.Fatal("expected error when no snapshot exists")
	}
	if disp.calls != 0 {
		t.Errorf("dispatcher called %d times, want 0", disp.calls)
	}
}

func TestProcessFailsWhenDeliveryFails(t *testing.T) {
	db := openTestDB(t)
	seedProfiles(t, db)
	proc := New(db, scoring.NewEngine(nil), &fakeDispatcher{err: errors.New("disk full")}, 3, 11)

	if _, err := proc.Process(context.Background(), 2, intakeRow("x@y.example")); err == nil {
		t.Fatal("expected error when delivery fails")
	}
	// Failed rows must not leave an audit record behind.
	c, err := db.GetCampaignByRow(2)
	if err != nil {
		t.Fatalf("GetCampaignByRow failed: %v", err)
	}
	if c != nil {
		t.Error("campaign recorded despite delivery failure")
	}
}

func TestProcessRejectsMalformedEmail(t *testing.T) {
	db := openTestDB(t)
	seedProfiles(t, db)
	disp := &fakeDispatcher{}
	proc := New(db, scoring.NewEngine(nil), disp, 3, 11)

	if _, err := proc.Process(context.Background(), 2, intakeRow("not-an-address")); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if disp.campaign.ContactEmail != "" {
		t.Errorf("contact email = %q, want empty", disp.campaign.ContactEmail)
	}
}

func TestParseCampaignShortRow(t *testing.T) {
	c := parseCampaign(3, []string{"ts", "Biz"}, 11)
	if c.Business != "Biz" || c.Goal != "" || c.ContactEmail != "" {
		t.Errorf("unexpected campaign: %+v", c)
	}
	if c.SheetRow != 3 {
		t.Errorf("sheet row = %d, want 3", c.SheetRow)
	}
}
