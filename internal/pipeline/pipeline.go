package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/influmate/influmate/internal/database"
	"github.com/influmate/influmate/internal/dispatch"
	"github.com/influmate/influmate/internal/scoring"
)

// Intake column positions within a form response row. Column 0 is the
// form's submission timestamp.
const (
	colSubmittedAt = 0
	colBusiness    = 1
	colIndustry    = 2
	colGoal        = 3
	colTierFilter  = 4
	colLocation    = 5
)

// Processor turns one intake row into a ranked shortlist and a delivered
// report. It implements the poller's row handler.
type Processor struct {
	db         *database.DB
	engine     *scoring.Engine
	dispatcher dispatch.Dispatcher
	topN       int
	emailIndex int
}

// New creates a processor. emailIndex is the zero-based column holding
// the requester's email address.
func New(db *database.DB, engine *scoring.Engine, dispatcher dispatch.Dispatcher, topN, emailIndex int) *Processor {
	return &Processor{
		db:         db,
		engine:     engine,
		dispatcher: dispatcher,
		topN:       topN,
		emailIndex: emailIndex,
	}
}

// Process handles one unprocessed intake row. Errors are retriable: the
// caller will offer the row again on a later cycle, and the completion
// marker keeps successful rows from running twice.
func (p *Processor) Process(ctx context.Context, rowNum int, row []string) (string, error) {
	c := parseCampaign(rowNum, row, p.emailIndex)

	snapshot, err := p.db.GetProfiles()
	if err != nil {
		return "", fmt.Errorf("loading profile snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return "", fmt.Errorf("no profile snapshot available yet")
	}

	ranked := p.engine.Shortlist(scoring.Request{
		Goal:           c.Goal,
		TierFilter:     c.TierFilter,
		LocationFilter: c.LocationFilter,
	}, snapshot, p.topN)

	ref, err := p.dispatcher.Deliver(ctx, c, ranked)
	if err != nil {
		return "", fmt.Errorf("delivering report: %w", err)
	}
	c.ReportPath = ref

	now := time.Now().UTC().Format(time.RFC3339)
	c.ProcessedAt = &now
	if _, err := p.db.RecordCampaign(c); err != nil {
		// The report went out; losing the audit row should not
		// trigger a redelivery.
		log.Printf("row %d: recording campaign failed: %v", rowNum, err)
	}

	return fmt.Sprintf("%d influencers -> %s", len(ranked), ref), nil
}

func parseCampaign(rowNum int, row []string, emailIndex int) database.Campaign {
	c := database.Campaign{
		SheetRow:       rowNum,
		SubmittedAt:    cell(row, colSubmittedAt),
		Business:       cell(row, colBusiness),
		Industry:       cell(row, colIndustry),
		Goal:           cell(row, colGoal),
		TierFilter:     cell(row, colTierFilter),
		LocationFilter: cell(row, colLocation),
		ContactEmail:   cell(row, emailIndex),
	}
	if !strings.Contains(c.ContactEmail, "@") {
		c.ContactEmail = ""
	}
	return c
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
