package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
)

// ReadCSV reads a CSV export whose first row is the header.
func ReadCSV(ctx context.Context, r io.Reader) ([]model.ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", common.ErrNoRecords)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}

	records, err := ParseRows(header, rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("Parsed CSV import",
		"rows", len(rows),
		"records", len(records),
		"columns", len(header))
	return records, nil
}
