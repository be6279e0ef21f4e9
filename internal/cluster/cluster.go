// Package cluster groups import records that refer to the same contact.
package cluster

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// TotalFields are the column names treated as a stated cluster total.
var TotalFields = []string{"Total", "total", "TOTAL"}

// OutstandingFields are tried in order for each record's outstanding amount.
var OutstandingFields = []string{
	"Outstanding", "outstanding", "OUTSTANDING",
	"Balance", "balance", "BALANCE",
	"balance_pays", "Balance_Pays", "BALANCE_PAYS",
	"Amount", "amount", "AMOUNT",
	"Due", "due", "DUE",
}

// Engine builds identity clusters from an import batch.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Cluster groups records by normalized name. Clusters appear in the order
// their first member appears, and members keep input order. Records with an
// empty normalized name are left out.
func (e *Engine) Cluster(records []model.ImportRecord) []model.Cluster {
	var clusters []model.Cluster
	byName := make(map[string]int)

	for _, record := range records {
		key := normalize.Name(record.Name)
		if key == "" {
			continue
		}

		idx, ok := byName[key]
		if !ok {
			idx = len(clusters)
			byName[key] = idx
			clusters = append(clusters, model.Cluster{
				ID:           idx + 1,
				IdentityName: record.Name,
			})
		}
		clusters[idx].Members = append(clusters[idx].Members, record)
	}

	for i := range clusters {
		c := &clusters[i]
		c.TotalOutstanding = TotalOutstanding(c.Members)
		c.PrimaryPhone, c.AlternatePhones = phones(c.Members)
		c.ConflictCount = len(c.AlternatePhones)

		if c.ConflictCount > 0 {
			e.logger.Debug("Cluster members disagree on phone",
				"cluster", c.ID,
				"name", c.IdentityName,
				"primary", c.PrimaryPhone,
				"alternates", c.AlternatePhones)
		}
	}

	e.logger.Debug("Clustered import records",
		"records", len(records),
		"clusters", len(clusters))

	return clusters
}

// TotalOutstanding computes a cluster's outstanding amount. A stated Total
// column wins over summing so that totals are not double counted.
func TotalOutstanding(members []model.ImportRecord) decimal.Decimal {
	if total, ok := statedTotal(members); ok {
		return total
	}

	sum := decimal.Zero
	for _, m := range members {
		if amount, ok := Outstanding(m); ok {
			sum = sum.Add(amount)
		}
	}
	return sum
}

func statedTotal(members []model.ImportRecord) (decimal.Decimal, bool) {
	for _, m := range members {
		for _, field := range TotalFields {
			v, ok := m.Attributes.Get(field)
			if !ok || v.IsEmpty() {
				continue
			}
			if d, ok := v.Decimal(); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// Outstanding returns the first numeric non-zero amount field of a record.
func Outstanding(record model.ImportRecord) (decimal.Decimal, bool) {
	for _, field := range OutstandingFields {
		v, ok := record.Attributes.Get(field)
		if !ok {
			continue
		}
		if d, ok := v.Decimal(); ok && !d.IsZero() {
			return d, true
		}
	}
	return decimal.Zero, false
}

// phones returns the first non-empty phone and the other distinct phones in
// first-seen order.
func phones(members []model.ImportRecord) (string, []string) {
	var primary string
	var alternates []string
	seen := make(map[string]bool)

	for _, m := range members {
		p := normalize.Phone(m.Phone)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if primary == "" {
			primary = p
			continue
		}
		alternates = append(alternates, p)
	}
	return primary, alternates
}
