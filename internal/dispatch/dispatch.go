package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/influmate/influmate/internal/database"
	"github.com/influmate/influmate/internal/scoring"
)

// Dispatcher produces the report artifact and the requester notification
// for one processed campaign. It must be safe to call at-least-once per
// campaign row.
type Dispatcher interface {
	Deliver(ctx context.Context, c database.Campaign, ranked []scoring.ScoredProfile) (string, error)
}

// Notifier sends the "your shortlist is ready" message to the requester.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// FileDispatcher writes the shortlist report as markdown and HTML under
// the data directory, then notifies the requester if a notifier is
// configured.
type FileDispatcher struct {
	dir      string
	notifier Notifier
	subject  string
	body     string
}

// NewFileDispatcher creates a dispatcher writing under dataDir/reports.
// notifier may be nil to disable notifications.
func NewFileDispatcher(dataDir string, notifier Notifier, subject, body string) *FileDispatcher {
	return &FileDispatcher{
		dir:      filepath.Join(dataDir, "reports"),
		notifier: notifier,
		subject:  subject,
		body:     body,
	}
}

// Deliver renders and writes the report, then sends the notification.
// The returned reference is the markdown artifact's path. A notification
// failure fails the delivery so the row stays eligible for retry.
func (d *FileDispatcher) Deliver(ctx context.Context, c database.Campaign, ranked []scoring.ScoredProfile) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}

	report := RenderMarkdown(c, ranked)
	base := filepath.Join(d.dir, fmt.Sprintf("campaign-row%d", c.SheetRow))

	mdPath := base + ".md"
	if err := os.WriteFile(mdPath, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	var html bytes.Buffer
	if err := md.Convert([]byte(report), &html); err != nil {
		// The markdown artifact is the contract; HTML is a convenience.
		log.Printf("campaign row %d: HTML render failed: %v", c.SheetRow, err)
	} else if err := os.WriteFile(base+".html", html.Bytes(), 0o644); err != nil {
		log.Printf("campaign row %d: writing HTML report failed: %v", c.SheetRow, err)
	}

	if d.notifier != nil && c.ContactEmail != "" {
		body := d.body + "\n\n" + report
		if c.SubmittedAt != "" {
			body = fmt.Sprintf("%s\n\nSubmitted: %s\n\n%s", d.body, c.SubmittedAt, report)
		}
		if err := d.notifier.Notify(ctx, c.ContactEmail, d.subject, body); err != nil {
			return "", fmt.Errorf("notifying %s: %w", c.ContactEmail, err)
		}
	}

	return mdPath, nil
}

// RenderMarkdown renders the ranked shortlist for one campaign. Rates are
// shown as percentages, scores to four decimals.
func RenderMarkdown(c database.Campaign, ranked []scoring.ScoredProfile) string {
	var b strings.Builder

	title := c.Business
	if title == "" {
		title = fmt.Sprintf("Campaign (row %d)", c.SheetRow)
	}
	fmt.Fprintf(&b, "# Influencer shortlist: %s\n\n", title)

	if c.Goal != "" {
		fmt.Fprintf(&b, "**Goal:** %s\n\n", c.Goal)
	}
	if c.Industry != "" {
		fmt.Fprintf(&b, "**Industry:** %s\n\n", c.Industry)
	}
	if c.TierFilter != "" || c.LocationFilter != "" {
		fmt.Fprintf(&b, "**Filters:** tier=%s location=%s\n\n",
			orAny(c.TierFilter), orAny(c.LocationFilter))
	}

	if len(ranked) == 0 {
		b.WriteString("No influencer profiles were available for this campaign.\n")
		return b.String()
	}

	b.WriteString("| # | Influencer | Match score | Tier | Followers | Engagement | Reach |\n")
	b.WriteString("|---|------------|-------------|------|-----------|------------|-------|\n")
	for i, sp := range ranked {
		fmt.Fprintf(&b, "| %d | %s | %.4f | %s | %d | %.2f%% | %.2f%% |\n",
			i+1, sp.InfluencerID, sp.Score, sp.Tier, sp.Followers,
			sp.AvgEngagementRate*100, sp.AvgReachRate*100)
	}
	return b.String()
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
