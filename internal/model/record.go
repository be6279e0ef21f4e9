// Package model holds the data types shared by the reconciliation pipeline.
package model

import "time"

// ImportRecord is one spreadsheet row. It is never modified after parsing.
type ImportRecord struct {
	Name           string
	Phone          string
	Attributes     Attributes
	SourceRowIndex int
}

// Identity is a registry entry. The registry owns it; reconciliation only
// reads identities and proposes new ones.
type Identity struct {
	CreatedAt   time.Time
	ID          string
	Name        string
	Phone       string
	Location    string
	ExternalRef string
}
