package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/export"
	"github.com/Veraticus/contact-sync/internal/model"
)

// summaryRows is the number of rows above the record header.
const summaryRows = 8

// Writer exports reconciled records to a spreadsheet tab.
type Writer struct {
	api    API
	logger *slog.Logger
	config Config
}

// NewWriter creates a writer over api.
func NewWriter(api API, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{api: api, config: config, logger: logger}
}

// Write replaces the export tab with the summary and the records, creating
// the spreadsheet when no ID is configured. It returns the spreadsheet ID.
func (w *Writer) Write(ctx context.Context, records []model.ReconciledRecord, summary model.Summary) (string, error) {
	w.logger.Info("Starting sheet export",
		"records", len(records),
		"tab", w.config.ExportTab)

	retryOpts := retryOptions(w.config)

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	sheetID, err := common.RetryValue(ctx, func() (int64, error) {
		return w.api.EnsureTab(ctx, spreadsheetID, w.config.ExportTab)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to prepare tab %q: %w", w.config.ExportTab, err)
	}

	err = common.WithRetry(ctx, func() error {
		return w.api.ClearValues(ctx, spreadsheetID, w.tabRange("A:ZZ"))
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to clear tab: %w", err)
	}

	table := export.Build(records, export.Options{CountryCode: w.config.CountryCode})
	values := prepareExportData(table, summary)

	if err := w.writeData(ctx, spreadsheetID, values); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.api.BatchUpdate(ctx, spreadsheetID, formatRequests(sheetID, len(table.Header)))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("Failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("Sheet export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))
	return spreadsheetID, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	id, err := common.RetryValue(ctx, func() (string, error) {
		return w.api.CreateSpreadsheet(ctx, w.config.SpreadsheetName, w.config.TimeZone, w.config.ExportTab)
	}, retryOptions(w.config))
	if err != nil {
		return "", err
	}
	w.logger.Info("Created new spreadsheet", "id", id, "title", w.config.SpreadsheetName)
	return id, nil
}

func (w *Writer) tabRange(cells string) string {
	return fmt.Sprintf("'%s'!%s", w.config.ExportTab, cells)
}

// prepareExportData lays out the summary block, the record header, the
// records and the totals row.
func prepareExportData(table export.Table, summary model.Summary) [][]any {
	values := make([][]any, 0, summaryRows+len(table.Rows)+2)
	values = append(values,
		[]any{"Reconciled Contacts"},
		[]any{"Total Records", summary.TotalRecords},
		[]any{"Auto-Linked", summary.AutoLinked},
		[]any{"New Identities", summary.NewIdentitiesCreated},
		[]any{"Skipped", summary.Skipped},
		[]any{"Errors", summary.ErrorCount},
		[]any{"Processing Time (ms)", summary.ProcessingTimeMs},
		[]any{},
	)

	values = append(values, toAny(table.Header))
	for _, row := range table.Rows {
		values = append(values, toAny(row))
	}
	if table.Totals != nil {
		values = append(values, toAny(table.Totals))
	}
	return values
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, s := range row {
		out[i] = s
	}
	return out
}

// writeData writes values in batches to stay under request size limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		err := common.WithRetry(ctx, func() error {
			return w.api.UpdateValues(ctx, spreadsheetID, w.tabRange(fmt.Sprintf("A%d", i+1)), batch)
		}, retryOptions(w.config))
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("Wrote batch", "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func formatRequests(sheetID int64, columns int) []*sheets.Request {
	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    summaryRows,
					EndRowIndex:      summaryRows + 1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: summaryRows + 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
}
