package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/contact-sync/internal/model"
)

// maxListedErrors caps the record errors printed under the summary.
const maxListedErrors = 10

// RenderSummary renders the end-of-run box followed by the first record
// errors.
func RenderSummary(summary model.Summary, errs []model.RecordError) string {
	pct := func(n int) float64 {
		if summary.TotalRecords == 0 {
			return 0
		}
		return float64(n) / float64(summary.TotalRecords) * 100
	}

	content := fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Total records: %d\n", summary.TotalRecords) +
		fmt.Sprintf("  • Auto-linked: %d (%.1f%%)\n", summary.AutoLinked, pct(summary.AutoLinked)) +
		fmt.Sprintf("  • New identities: %d\n", summary.NewIdentitiesCreated) +
		fmt.Sprintf("  • Skipped: %d\n", summary.Skipped) +
		fmt.Sprintf("  • Errors: %d\n", summary.ErrorCount) +
		fmt.Sprintf("  • Time taken: %dms", summary.ProcessingTimeMs)

	var b strings.Builder
	b.WriteString(RenderBox("Reconciliation Complete", content))

	if len(errs) > 0 {
		b.WriteString("\n")
		for i, e := range errs {
			if i == maxListedErrors {
				fmt.Fprintf(&b, "\n%s", SubtitleStyle.Render(fmt.Sprintf("... and %d more", len(errs)-maxListedErrors)))
				break
			}
			fmt.Fprintf(&b, "\n%s", FormatError(fmt.Sprintf("row %d (%s): %s", e.RecordIndex+1, e.RecordName, e.Message)))
		}
	}
	return b.String()
}
