package model

// Provenance records where a reconciled record's final values came from.
type Provenance string

const (
	// ProvenanceRegistry means name and phone come from a registry identity.
	ProvenanceRegistry Provenance = "registry"
	// ProvenanceImported means the imported values were kept.
	ProvenanceImported Provenance = "imported"
	// ProvenanceManual means a user typed the values.
	ProvenanceManual Provenance = "manual"
)

// ReconciledRecord is the final output for a single import row.
type ReconciledRecord struct {
	FinalName        string
	FinalPhone       string
	IdentityID       string
	Provenance       Provenance
	SourceAttributes Attributes
	SourceRowIndex   int
}

// ErrorType classifies a per-record error.
type ErrorType string

const (
	// ErrorValidation is a malformed name or phone.
	ErrorValidation ErrorType = "validation"
	// ErrorDuplicateConflict is a collision while creating an identity.
	ErrorDuplicateConflict ErrorType = "duplicate_conflict"
	// ErrorInvariantViolation is an internal bug surfaced for a record.
	ErrorInvariantViolation ErrorType = "invariant_violation"
)

// RecordError is a recoverable per-record failure.
type RecordError struct {
	RecordName  string
	ErrorType   ErrorType
	Message     string
	RecordIndex int
}

// Summary describes a finished reconciliation run.
type Summary struct {
	TotalRecords         int   `json:"totalRecords"`
	AutoLinked           int   `json:"autoLinked"`
	NewIdentitiesCreated int   `json:"newIdentitiesCreated"`
	Skipped              int   `json:"skipped"`
	ErrorCount           int   `json:"errorCount"`
	ProcessingTimeMs     int64 `json:"processingTimeMs"`
}
