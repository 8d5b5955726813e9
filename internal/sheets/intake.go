package sheets

import (
	"context"
	"fmt"
)

// IntakeSheet adapts one spreadsheet range to the poller's row source:
// reading the current row set and writing the completion marker back into
// the status column of a processed row.
type IntakeSheet struct {
	client        *Client
	spreadsheetID string
	readRange     string
	sheetName     string
	statusColumn  string
	marker        string
}

// NewIntakeSheet creates an intake adapter. statusColumn is a column
// letter; marker is the completion value written back on success.
func NewIntakeSheet(client *Client, spreadsheetID, readRange, statusColumn, marker string) *IntakeSheet {
	return &IntakeSheet{
		client:        client,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		sheetName:     SheetName(readRange),
		statusColumn:  statusColumn,
		marker:        marker,
	}
}

// Rows fetches the full current row set, header included.
func (s *IntakeSheet) Rows(ctx context.Context) ([][]string, error) {
	return s.client.Values(ctx, s.spreadsheetID, s.readRange)
}

// MarkProcessed writes the completion marker into the status column of the
// given 1-based sheet row.
func (s *IntakeSheet) MarkProcessed(ctx context.Context, rowNum int) error {
	cell := fmt.Sprintf("%s%d", s.statusColumn, rowNum)
	if s.sheetName != "" {
		cell = fmt.Sprintf("%s!%s", s.sheetName, cell)
	}
	return s.client.Update(ctx, s.spreadsheetID, cell, [][]string{{s.marker}})
}
