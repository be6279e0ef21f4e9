package model

import "github.com/shopspring/decimal"

// Cluster groups import records that share a normalized name.
type Cluster struct {
	TotalOutstanding decimal.Decimal
	IdentityName     string
	PrimaryPhone     string
	Members          []ImportRecord
	AlternatePhones  []string
	ID               int
	ConflictCount    int
}

// HasPhoneConflict reports whether members disagree on the phone number.
func (c *Cluster) HasPhoneConflict() bool {
	return c.ConflictCount > 0
}

// Phones returns the primary phone followed by the alternates.
func (c *Cluster) Phones() []string {
	if c.PrimaryPhone == "" {
		return nil
	}
	return append([]string{c.PrimaryPhone}, c.AlternatePhones...)
}
