package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/influmate/influmate/internal/database"
	"github.com/influmate/influmate/internal/profile"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCampaign(t *testing.T, db *database.DB, reportPath string) {
	t.Helper()
	processed := "2025-05-12T10:00:00Z"
	_, err := db.RecordCampaign(database.Campaign{
		SheetRow:     4,
		SubmittedAt:  "2025-05-12 09:30",
		Business:     "Aurora Coffee",
		Industry:     "F&B",
		Goal:         "brand awareness",
		ContactEmail: "owner@aurora.example",
		ReportPath:   reportPath,
		ProcessedAt:  &processed,
	})
	if err != nil {
		t.Fatalf("seeding campaign: %v", err)
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedCampaign(t, db, "")

	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Aurora Coffee") {
		t.Error("expected campaign business in response body")
	}
	if !strings.Contains(body, "/report/4") {
		t.Error("expected report link in response body")
	}
}

func TestIndexEmpty(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No campaigns processed yet") {
		t.Error("expected empty state in response body")
	}
}

func TestReportRoute(t *testing.T) {
	db := openTestDB(t)

	reportPath := filepath.Join(t.TempDir(), "campaign-row4.md")
	report := "# Influencer shortlist: Aurora Coffee\n\n| # | Influencer |\n|---|---|\n| 1 | inf_micro |\n"
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		t.Fatalf("writing report fixture: %v", err)
	}
	seedCampaign(t, db, reportPath)

	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/report/4", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Influencer shortlist") {
		t.Error("expected rendered report heading in response")
	}
	if !strings.Contains(body, "inf_micro") {
		t.Error("expected shortlist row in response")
	}
}

func TestReportRouteUnknownRow(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/report/99", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestProfilesRoute(t *testing.T) {
	db := openTestDB(t)
	err := db.ReplaceProfiles([]profile.Profile{
		{
			InfluencerID:      "inf_micro",
			AvgEngagementRate: 0.045,
			Followers:         42_000,
			Location:          "Vietnam",
			Tier:              profile.TierMicro,
		},
	}, 3, 1)
	if err != nil {
		t.Fatalf("seeding profiles: %v", err)
	}

	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/profiles", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "inf_micro") {
		t.Error("expected profile row in response")
	}
	if !strings.Contains(body, "4.50%") {
		t.Error("expected formatted engagement rate in response")
	}
}

func TestFormRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, "https://docs.google.com/forms/d/e/abc/viewform?embedded=true")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/form", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docs.google.com/forms") {
		t.Error("expected embedded form URL in response")
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, "")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "nav") {
		t.Error("expected CSS content")
	}
}
