// Package export renders reconciled records as a flat table for CSV files
// and spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// Fixed columns, written before the source attributes.
var Columns = []string{"Row", "Name", "Phone", "Display Phone", "Identity ID", "Source"}

// Options tunes rendering.
type Options struct {
	// CountryCode prefixes ten-digit numbers in the display column.
	CountryCode string
}

// Table is a rendered record set. Totals is nil when no attribute column
// holds numbers.
type Table struct {
	Header []string
	Rows   [][]string
	Totals []string
}

// Build renders records in the order given. Attribute columns follow the
// fixed columns in first-seen order. A column whose non-empty cells are all
// numeric gets a decimal total.
func Build(records []model.ReconciledRecord, opts Options) Table {
	var keys []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range r.SourceAttributes.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	table := Table{Header: append(append([]string{}, Columns...), keys...)}

	sums := make([]decimal.Decimal, len(keys))
	numeric := make([]bool, len(keys))
	mixed := make([]bool, len(keys))

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.SourceRowIndex + 1),
			r.FinalName,
			r.FinalPhone,
			normalize.DisplayPhone(r.FinalPhone, opts.CountryCode),
			r.IdentityID,
			string(r.Provenance),
		}
		for i, k := range keys {
			v, ok := r.SourceAttributes.Get(k)
			if !ok || v.IsEmpty() {
				row = append(row, "")
				continue
			}
			row = append(row, v.String())
			if d, isNum := v.Decimal(); isNum {
				sums[i] = sums[i].Add(d)
				numeric[i] = true
			} else {
				mixed[i] = true
			}
		}
		table.Rows = append(table.Rows, row)
	}

	for i := range keys {
		if numeric[i] && !mixed[i] {
			table.Totals = make([]string, len(table.Header))
			break
		}
	}
	if table.Totals != nil {
		table.Totals[0] = "Total"
		for i := range keys {
			if numeric[i] && !mixed[i] {
				table.Totals[len(Columns)+i] = sums[i].StringFixed(2)
			}
		}
	}
	return table
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []model.ReconciledRecord, opts Options) error {
	table := Build(records, opts)

	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}
