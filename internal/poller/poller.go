package poller

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Source is the tabular campaign-intake store. Implementations fetch the
// full current row set (header included) and write the completion marker
// back to a processed row.
type Source interface {
	Rows(ctx context.Context) ([][]string, error)
	MarkProcessed(ctx context.Context, rowNum int) error
}

// Processor handles one new intake row. It must be safe to call
// at-least-once for the same row; it returns a reference to the produced
// report artifact.
type Processor interface {
	Process(ctx context.Context, rowNum int, row []string) (string, error)
}

// Config holds the poller's tunables.
type Config struct {
	Interval    time.Duration
	MinColumns  int
	StatusIndex int
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	TotalRows int // data rows in the sheet, header excluded
	NewRows   int
	Processed int
	Marked    int // skipped: completion marker already present
	Invalid   int // skipped permanently: too few columns
	Failed    int // left unmarked for retry next cycle
}

// Poller watches an intake sheet and drives downstream processing exactly
// once per row under normal operation. Rows are detected with a row-count
// watermark, which assumes the sheet is append-only and never reordered;
// idempotency across runs rests solely on the completion marker.
type Poller struct {
	src  Source
	proc Processor
	cfg  Config

	watermark int              // data rows already scanned
	retry     map[int]struct{} // sheet rows that failed processing, by 1-based row number
}

// New creates a poller over a source and a downstream processor.
func New(src Source, proc Processor, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Poller{
		src:   src,
		proc:  proc,
		cfg:   cfg,
		retry: make(map[int]struct{}),
	}
}

// Run polls until the context is cancelled. Per-cycle errors are logged and
// never terminate the loop.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("poller started (interval %s)", p.cfg.Interval)
	for {
		stats, err := p.Cycle(ctx)
		if err != nil {
			log.Printf("poll cycle failed: %v", err)
		} else if stats.NewRows > 0 || stats.Failed > 0 {
			log.Printf("cycle: %d new rows, %d processed, %d already marked, %d invalid, %d failed",
				stats.NewRows, stats.Processed, stats.Marked, stats.Invalid, stats.Failed)
		}

		select {
		case <-ctx.Done():
			log.Println("poller stopped")
			return
		case <-time.After(p.cfg.Interval):
		}
	}
}

// Cycle runs one poll iteration: fetch, detect new rows past the
// watermark, process them, retry previously failed rows, and advance the
// watermark to the total row count regardless of per-row outcome.
func (p *Poller) Cycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	rows, err := p.src.Rows(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching intake rows: %w", err)
	}

	// Header only or empty: nothing to scan.
	if len(rows) < 2 {
		return stats, nil
	}

	data := rows[1:]
	stats.TotalRows = len(data)

	if p.watermark > len(data) {
		// Rows disappeared; the append-only assumption was violated.
		log.Printf("warning: row count shrank from %d to %d, resetting watermark", p.watermark, len(data))
		p.watermark = len(data)
	}

	// Snapshot first so rows failing below are not retried within the same
	// cycle.
	pending := sortedKeys(p.retry)

	for i := p.watermark; i < len(data); i++ {
		rowNum := i + 2 // 1-based sheet row, header is row 1
		stats.NewRows++
		p.handleRow(ctx, rowNum, data[i], false, &stats)
	}

	// Rows that failed a previous cycle stay eligible while their
	// completion marker is empty, even though the watermark has moved past
	// them.
	for _, rowNum := range pending {
		i := rowNum - 2
		if i < 0 || i >= len(data) {
			delete(p.retry, rowNum)
			continue
		}
		p.handleRow(ctx, rowNum, data[i], true, &stats)
	}

	p.watermark = len(data)
	return stats, nil
}

func (p *Poller) handleRow(ctx context.Context, rowNum int, row []string, isRetry bool, stats *CycleStats) {
	if len(row) < p.cfg.MinColumns {
		log.Printf("row %d: skipped, only %d of %d required columns", rowNum, len(row), p.cfg.MinColumns)
		stats.Invalid++
		delete(p.retry, rowNum)
		return
	}

	// Idempotency: a non-empty status cell means the row was already
	// handled, possibly by another run.
	if p.cfg.StatusIndex < len(row) && strings.TrimSpace(row[p.cfg.StatusIndex]) != "" {
		stats.Marked++
		delete(p.retry, rowNum)
		return
	}

	ref, err := p.proc.Process(ctx, rowNum, row)
	if err != nil {
		log.Printf("row %d: processing failed, will retry next cycle: %v", rowNum, err)
		stats.Failed++
		p.retry[rowNum] = struct{}{}
		return
	}

	if err := p.src.MarkProcessed(ctx, rowNum); err != nil {
		// Processed but unmarked: the row will be handled again, which the
		// at-least-once contract accepts.
		log.Printf("row %d: processed (%s) but marker write failed: %v", rowNum, ref, err)
		stats.Failed++
		p.retry[rowNum] = struct{}{}
		return
	}

	if isRetry {
		log.Printf("row %d: processed on retry, report %s", rowNum, ref)
	} else {
		log.Printf("row %d: processed, report %s", rowNum, ref)
	}
	stats.Processed++
	delete(p.retry, rowNum)
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
