// Package engine reconciles an import batch against the customer registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/contact-sync/internal/cluster"
	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/registry"
	"github.com/Veraticus/contact-sync/internal/resolve"
	"github.com/Veraticus/contact-sync/internal/service"
)

// Config holds configuration options for the reconciler.
type Config struct {
	Clock registry.Clock
	// SkipPolicy decides the defaults applied to conflicts left pending.
	SkipPolicy resolve.SkipPolicy
	// AutoAcceptTier links name-mismatch candidates at or above this tier
	// without asking. TierNone disables it.
	AutoAcceptTier match.Tier
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clock:          registry.SystemClock{},
		SkipPolicy:     resolve.SkipRegistryIfMatched,
		AutoAcceptTier: match.TierNone,
	}
}

// Reconciler turns import records into reconciled records, linking what it can
// and queueing the rest as conflicts.
type Reconciler struct {
	registry  service.Registry
	clusterer *cluster.Engine
	logger    *slog.Logger
	config    Config
}

// New creates a reconciler with the default configuration.
func New(reg service.Registry, logger *slog.Logger) *Reconciler {
	return NewWithConfig(reg, DefaultConfig(), logger)
}

// NewWithConfig creates a reconciler with custom configuration. The registry
// is normally a *registry.Cache so the snapshot is fetched once per run.
func NewWithConfig(reg service.Registry, config Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = registry.SystemClock{}
	}
	if config.SkipPolicy == "" {
		config.SkipPolicy = resolve.SkipRegistryIfMatched
	}
	return &Reconciler{
		registry:  reg,
		clusterer: cluster.NewEngine(logger),
		logger:    logger,
		config:    config,
	}
}

// Start clusters the records, matches every cluster against one registry
// snapshot and opens a session holding the conflicts. A registry failure
// aborts the run without a session.
func (r *Reconciler) Start(ctx context.Context, records []model.ImportRecord) (*Session, error) {
	started := r.config.Clock.Now()

	if err := validateRows(records); err != nil {
		return nil, err
	}

	identities, err := r.registry.ListAllIdentities(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrRegistryUnavailable) {
			err = &common.RegistryUnavailableError{Err: err}
		}
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	r.logger.Info("Starting reconciliation",
		"records", len(records),
		"identities", len(identities))

	session := &Session{
		clock:   r.config.Clock,
		logger:  r.logger,
		started: started,
		inputs:  records,
	}
	session.collectRecordErrors()

	exact := match.NewExactMatcher(identities, r.logger)
	scorer := match.NewScorer(identities)

	var conflicts []*resolve.Conflict
	for _, c := range r.clusterer.Cluster(records) {
		if conflict := r.matchCluster(session, exact, scorer, c); conflict != nil {
			conflicts = append(conflicts, conflict)
		}
	}

	session.resolver = resolve.NewResolver(r.registry, conflicts, r.config.SkipPolicy, r.logger)

	r.logger.Info("Matched clusters against registry",
		"auto_linked", session.autoLinked,
		"conflicts", len(conflicts))
	return session, nil
}

// matchCluster links c when it is unambiguous and returns the conflict
// otherwise.
func (r *Reconciler) matchCluster(s *Session, exact *match.ExactMatcher, scorer *match.Scorer, c model.Cluster) *resolve.Conflict {
	result := exact.FindByName(c.IdentityName)
	if result.Matched() {
		if canAutoLink(c, *result.Identity) && s.link(c, *result.Identity) {
			return nil
		}
		return &resolve.Conflict{Type: model.ConflictPhoneMismatch, Match: result.Identity, Cluster: c}
	}

	candidate, ok := scorer.BestCandidate(c.IdentityName)
	if !ok {
		return &resolve.Conflict{Type: model.ConflictNoMatch, Cluster: c}
	}

	if r.config.AutoAcceptTier != match.TierNone && candidate.Tier >= r.config.AutoAcceptTier &&
		canAutoLink(c, candidate.Identity) && s.link(c, candidate.Identity) {
		r.logger.Debug("Auto-accepted similar identity",
			"name", c.IdentityName,
			"identity", candidate.Identity.Name,
			"score", candidate.Score,
			"tier", candidate.Tier.String())
		return nil
	}
	return &resolve.Conflict{Type: model.ConflictNameMismatch, Candidate: &candidate, Cluster: c}
}

// canAutoLink reports whether the cluster agrees with the identity's phone:
// members agree among themselves, the registry phone is valid, and the
// imported phone is either missing or the same number.
func canAutoLink(c model.Cluster, identity model.Identity) bool {
	if c.HasPhoneConflict() {
		return false
	}
	if !normalize.ValidatePhone(identity.Phone).Valid {
		return false
	}
	return c.PrimaryPhone == "" || normalize.SamePhone(c.PrimaryPhone, identity.Phone)
}

func validateRows(records []model.ImportRecord) error {
	seen := make(map[int]bool, len(records))
	for _, r := range records {
		if seen[r.SourceRowIndex] {
			return &common.ValidationError{
				Field:  "source_row_index",
				Reason: fmt.Sprintf("row %d appears more than once", r.SourceRowIndex),
			}
		}
		seen[r.SourceRowIndex] = true
	}
	return nil
}
