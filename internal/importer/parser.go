// Package importer turns spreadsheet rows into import records.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
)

// NameColumns are the accepted headers for the contact name, in priority order.
var NameColumns = []string{
	"name", "customer name", "customer", "client name", "client",
	"party name", "party", "contact name", "full name",
}

// PhoneColumns are the accepted headers for the phone number, in priority order.
var PhoneColumns = []string{
	"phone", "phone number", "mobile", "mobile number", "contact number",
	"whatsapp", "cell", "tel",
}

// DateLayouts are tried in order when detecting date cells. Day-first wins
// over month-first for ambiguous dates.
var DateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
}

// Columns locates the name and phone columns of a header. Phone is -1 when
// the sheet has no phone column.
type Columns struct {
	Name  int
	Phone int
}

// DetectColumns finds the name and phone columns. A header without a name
// column cannot be reconciled.
func DetectColumns(header []string) (Columns, error) {
	cols := Columns{
		Name:  findColumn(header, NameColumns),
		Phone: findColumn(header, PhoneColumns),
	}
	if cols.Name < 0 {
		return cols, &common.ValidationError{
			Field:  "header",
			Reason: fmt.Sprintf("no name column (expected one of: %s)", strings.Join(NameColumns, ", ")),
		}
	}
	return cols, nil
}

func findColumn(header []string, candidates []string) int {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}
	for _, want := range candidates {
		for i, k := range keys {
			if k == want {
				return i
			}
		}
	}
	return -1
}

// headerKey folds case, underscores and spacing so "Customer_Name" and
// " customer  name" compare equal.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(strings.ToLower(h), "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

// ParseRows converts data rows into import records. Every column other than
// name and phone becomes an attribute, in header order. Blank rows are
// skipped; SourceRowIndex is the row's position among the data rows.
func ParseRows(header []string, rows [][]string) ([]model.ImportRecord, error) {
	cols, err := DetectColumns(header)
	if err != nil {
		return nil, err
	}

	records := make([]model.ImportRecord, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}

		record := model.ImportRecord{
			SourceRowIndex: i,
			Name:           strings.TrimSpace(cell(row, cols.Name)),
		}
		if cols.Phone >= 0 {
			record.Phone = strings.TrimSpace(cell(row, cols.Phone))
		}

		for c, h := range header {
			if c == cols.Name || c == cols.Phone {
				continue
			}
			key := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			if key == "" {
				key = fmt.Sprintf("column_%d", c+1)
			}
			record.Attributes = append(record.Attributes, model.Attribute{
				Key:   key,
				Value: ParseCell(cell(row, c)),
			})
		}
		records = append(records, record)
	}
	return records, nil
}

// ParseCell detects the kind of a raw cell.
func ParseCell(raw string) model.Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.EmptyValue()
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DateValue(t)
		}
	}
	if d, ok := model.ParseAmount(s); ok {
		return model.NumberValue(d)
	}
	return model.StringValue(s)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
