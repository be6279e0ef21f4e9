package importer

import (
	"crypto/sha256"
	"fmt"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// Fingerprint identifies an import batch by its rows' names and phones, so a
// re-run of the same file finds the session it left unfinished.
func Fingerprint(records []model.ImportRecord) string {
	h := sha256.New()
	for _, r := range records {
		fmt.Fprintf(h, "%d:%s:%s\n", r.SourceRowIndex, normalize.Name(r.Name), normalize.Phone(r.Phone))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
