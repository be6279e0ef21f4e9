package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/importer"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/service"
)

// Reader loads import batches from a spreadsheet.
type Reader struct {
	api    API
	logger *slog.Logger
	config Config
}

// NewReader creates a reader over api.
func NewReader(api API, config Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{api: api, config: config, logger: logger}
}

// ReadRows reads readRange, whose first row is the header, and parses it into
// import records. An empty readRange uses the configured one.
func (r *Reader) ReadRows(ctx context.Context, spreadsheetID, readRange string) ([]model.ImportRecord, error) {
	if spreadsheetID == "" {
		spreadsheetID = r.config.SpreadsheetID
	}
	if spreadsheetID == "" {
		return nil, common.NewValidationError("spreadsheet_id", "empty")
	}
	if readRange == "" {
		readRange = r.config.ReadRange
	}

	values, err := common.RetryValue(ctx, func() ([][]any, error) {
		return r.api.GetValues(ctx, spreadsheetID, readRange)
	}, r.retryOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from spreadsheet %s: %w", readRange, spreadsheetID, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: range %s is empty", common.ErrNoRecords, readRange)
	}

	header := cellStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, cellStrings(v))
	}

	records, err := importer.ParseRows(header, rows)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Read import batch from spreadsheet",
		"spreadsheet_id", spreadsheetID,
		"range", readRange,
		"rows", len(rows),
		"records", len(records))
	return records, nil
}

func (r *Reader) retryOptions() service.RetryOptions {
	return retryOptions(r.config)
}

func retryOptions(config Config) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  config.RetryAttempts,
		InitialDelay: config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func cellStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
