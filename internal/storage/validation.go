// Package storage provides the data persistence layer for contact-sync.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/contact-sync/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidRecord   = errors.New("invalid reconciled record")
	ErrInvalidDecision = errors.New("invalid resolution")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecords checks reconciled records before they are written.
func validateRecords(records []model.ReconciledRecord) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	seen := make(map[int]bool, len(records))
	for i, r := range records {
		if seen[r.SourceRowIndex] {
			return fmt.Errorf("%w: record %d repeats row %d", ErrInvalidRecord, i, r.SourceRowIndex)
		}
		seen[r.SourceRowIndex] = true

		switch r.Provenance {
		case model.ProvenanceRegistry, model.ProvenanceImported, model.ProvenanceManual:
		default:
			return fmt.Errorf("%w: record %d has provenance %q", ErrInvalidRecord, i, r.Provenance)
		}
	}
	return nil
}

// validateDecision checks a decision before it is saved.
func validateDecision(d model.SavedDecision) error {
	if d.ClusterKey == "" {
		return fmt.Errorf("%w: empty cluster key", ErrInvalidDecision)
	}
	res := d.Resolution
	if res.RecordIndex < 0 {
		return fmt.Errorf("%w: negative conflict index %d", ErrInvalidDecision, res.RecordIndex)
	}
	for _, a := range model.Actions {
		if a == res.Action {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown action %s", ErrInvalidDecision, res.Action)
}
