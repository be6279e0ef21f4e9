// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/contact-sync/internal/model"
)

// IdentityLister reads the full registry in its natural order.
type IdentityLister interface {
	ListAllIdentities(ctx context.Context) ([]model.Identity, error)
}

// Registry is the customer registry consumed by reconciliation. CreateIdentity
// returns a *common.DuplicateConflictError when the name or phone is taken.
type Registry interface {
	IdentityLister
	CreateIdentity(ctx context.Context, name, phone string, attrs model.Attributes) (*model.Identity, error)
}

// Session is a persisted reconciliation session, keyed by the import fingerprint.
type Session struct {
	CreatedAt   time.Time
	CompletedAt *time.Time
	ID          string
	Source      string
	Fingerprint string
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Registry

	// Identity operations
	GetIdentity(ctx context.Context, id string) (*model.Identity, error)
	UpdateIdentityPhone(ctx context.Context, id, phone string) error
	DeleteIdentity(ctx context.Context, id string) error

	// Reconciled record operations
	SaveReconciledRecords(ctx context.Context, sessionID string, records []model.ReconciledRecord) error
	GetReconciledRecords(ctx context.Context, sessionID string) ([]model.ReconciledRecord, error)

	// Session operations
	CreateSession(ctx context.Context, source, fingerprint string) (*Session, error)
	GetSessionByFingerprint(ctx context.Context, fingerprint string) (*Session, error)
	CompleteSession(ctx context.Context, sessionID string) error
	SaveResolution(ctx context.Context, sessionID string, decision model.SavedDecision) error
	GetResolutions(ctx context.Context, sessionID string) ([]model.SavedDecision, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for remote calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
