package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeSource is an in-memory intake sheet.
type fakeSource struct {
	rows    [][]string
	fetchErr error
	markErr  error
	marked   []int
}

func (f *fakeSource) Rows(_ context.Context) ([][]string, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([][]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (f *fakeSource) MarkProcessed(_ context.Context, rowNum int) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, rowNum)
	// Mirror what the real sheet does: the status cell is set.
	row := f.rows[rowNum-1]
	for len(row) <= 6 {
		row = append(row, "")
	}
	row[6] = "Processed"
	f.rows[rowNum-1] = row
	return nil
}

// fakeProcessor records calls and can fail selectively.
type fakeProcessor struct {
	calls   []int
	failRow int
	err     error
}

func (f *fakeProcessor) Process(_ context.Context, rowNum int, _ []string) (string, error) {
	f.calls = append(f.calls, rowNum)
	if f.err != nil && (f.failRow == 0 || f.failRow == rowNum) {
		return "", f.err
	}
	return fmt.Sprintf("report-%d", rowNum), nil
}

func testConfig() Config {
	return Config{Interval: time.Second, MinColumns: 6, StatusIndex: 6}
}

func header() []string {
	return []string{"Timestamp", "Business", "Industry", "Goal", "Tier", "Location", "Status"}
}

func row(ts string, status string) []string {
	return []string{ts, "Acme", "Retail", "brand awareness", "", "", status}
}

func TestCycleProcessesNewRows(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", ""), row("t2", "")}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	stats, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", stats.Processed)
	}
	if len(src.marked) != 2 || src.marked[0] != 2 || src.marked[1] != 3 {
		t.Errorf("expected rows 2 and 3 marked, got %v", src.marked)
	}
}

func TestCycleSkipsMarkedRows(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "Processed"), row("t2", "")}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	stats, _ := p.Cycle(context.Background())
	if stats.Marked != 1 {
		t.Errorf("expected 1 marked skip, got %d", stats.Marked)
	}
	if len(proc.calls) != 1 || proc.calls[0] != 3 {
		t.Errorf("expected only row 3 processed, got %v", proc.calls)
	}
}

func TestSecondCycleDoesNotReprocess(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "")}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	p.Cycle(context.Background())
	stats, _ := p.Cycle(context.Background())

	if stats.NewRows != 0 {
		t.Errorf("expected no new rows on second cycle, got %d", stats.NewRows)
	}
	if len(proc.calls) != 1 {
		t.Errorf("expected exactly one processing call, got %d", len(proc.calls))
	}
}

func TestNewRowBetweenCyclesOnlyOneProcessed(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "Processed"), row("t2", "Processed")}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	p.Cycle(context.Background())
	src.rows = append(src.rows, row("t3", ""))
	stats, _ := p.Cycle(context.Background())

	if stats.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", stats.Processed)
	}
	if len(proc.calls) != 1 || proc.calls[0] != 4 {
		t.Errorf("expected only appended row 4 processed, got %v", proc.calls)
	}
}

func TestStructurallyInvalidRowSkippedPermanently(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), {"t1", "Acme"}, row("t2", "")}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	stats, _ := p.Cycle(context.Background())
	if stats.Invalid != 1 {
		t.Errorf("expected 1 invalid, got %d", stats.Invalid)
	}
	if len(proc.calls) != 1 || proc.calls[0] != 3 {
		t.Errorf("expected only row 3 processed, got %v", proc.calls)
	}

	// The short row must not come back on later cycles.
	stats, _ = p.Cycle(context.Background())
	if stats.Invalid != 0 || len(proc.calls) != 1 {
		t.Errorf("expected short row to stay skipped, stats %+v calls %v", stats, proc.calls)
	}
}

func TestFailedRowRetriedNextCycle(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "")}}
	proc := &fakeProcessor{err: errors.New("dispatch unavailable")}
	p := New(src, proc, testConfig())

	stats, _ := p.Cycle(context.Background())
	if stats.Failed != 1 || stats.Processed != 0 {
		t.Fatalf("expected 1 failure, got %+v", stats)
	}
	if len(src.marked) != 0 {
		t.Fatalf("failed row must not be marked, got %v", src.marked)
	}

	proc.err = nil
	stats, _ = p.Cycle(context.Background())
	if stats.Processed != 1 {
		t.Errorf("expected retry to succeed, got %+v", stats)
	}
	if len(proc.calls) != 2 {
		t.Errorf("expected 2 processing attempts, got %d", len(proc.calls))
	}
	if len(src.marked) != 1 || src.marked[0] != 2 {
		t.Errorf("expected row 2 marked after retry, got %v", src.marked)
	}
}

func TestRetrySkippedOnceMarkerAppears(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "")}}
	proc := &fakeProcessor{err: errors.New("boom")}
	p := New(src, proc, testConfig())
	p.Cycle(context.Background())

	// Another poller instance marked the row in the meantime.
	src.rows[1] = row("t1", "Processed")
	proc.err = nil
	stats, _ := p.Cycle(context.Background())

	if stats.Marked != 1 || stats.Processed != 0 {
		t.Errorf("expected marker to suppress the retry, got %+v", stats)
	}
	if len(proc.calls) != 1 {
		t.Errorf("expected no second processing call, got %d", len(proc.calls))
	}
}

func TestMarkerWriteFailureLeavesRowEligible(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "")}, markErr: errors.New("write denied")}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	stats, _ := p.Cycle(context.Background())
	if stats.Failed != 1 {
		t.Errorf("expected marker write failure to count as failed, got %+v", stats)
	}

	src.markErr = nil
	stats, _ = p.Cycle(context.Background())
	if stats.Processed != 1 {
		t.Errorf("expected retry after marker failure, got %+v", stats)
	}
	// Processed twice: the accepted at-least-once tradeoff.
	if len(proc.calls) != 2 {
		t.Errorf("expected 2 processing calls, got %d", len(proc.calls))
	}
}

func TestFetchErrorDoesNotAdvanceWatermark(t *testing.T) {
	src := &fakeSource{rows: [][]string{header(), row("t1", "")}, fetchErr: errors.New("api down")}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	if _, err := p.Cycle(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	src.fetchErr = nil
	stats, _ := p.Cycle(context.Background())
	if stats.Processed != 1 {
		t.Errorf("expected row processed once source recovered, got %+v", stats)
	}
}

func TestHeaderOnlySheetDoesNothing(t *testing.T) {
	src := &fakeSource{rows: [][]string{header()}}
	proc := &fakeProcessor{}
	p := New(src, proc, testConfig())

	stats, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalRows != 0 || len(proc.calls) != 0 {
		t.Errorf("expected no-op for header-only sheet, got %+v", stats)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{rows: [][]string{header()}}
	p := New(src, &fakeProcessor{}, Config{Interval: 10 * time.Millisecond, MinColumns: 6, StatusIndex: 6})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
}
