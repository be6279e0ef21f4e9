// Package resolve applies conflict-resolution decisions to identity clusters.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/service"
)

// Resolver errors.
var (
	ErrUnknownConflict = errors.New("unknown conflict")
	ErrAlreadyResolved = errors.New("conflict already resolved")
)

// SkipPolicy decides what SkipRemaining applies to pending conflicts.
type SkipPolicy string

const (
	// SkipRegistryIfMatched keeps the registry data when the cluster matched
	// exactly and the imported data otherwise.
	SkipRegistryIfMatched SkipPolicy = "registry_if_matched"
	// SkipImported always keeps the imported data.
	SkipImported SkipPolicy = "imported"
)

// ParseSkipPolicy validates a policy name. Empty means the default.
func ParseSkipPolicy(s string) (SkipPolicy, error) {
	switch SkipPolicy(s) {
	case "", SkipRegistryIfMatched:
		return SkipRegistryIfMatched, nil
	case SkipImported:
		return SkipImported, nil
	default:
		return "", fmt.Errorf("%w: skip policy %q", common.ErrInvalidConfig, s)
	}
}

// Conflict is a cluster that needs a decision.
type Conflict struct {
	// Match is the exact registry match, if any.
	Match *model.Identity
	// Candidate is a similarity proposal, set for name mismatches.
	Candidate  *match.Candidate
	Resolution *model.ConflictResolution
	Type       model.ConflictType
	State      model.ConflictState
	Records    []model.ReconciledRecord
	Cluster    model.Cluster
	Index      int
}

// Key returns the normalized cluster name, which identifies the conflict
// across runs over the same batch.
func (c *Conflict) Key() string {
	return normalize.Name(c.Cluster.IdentityName)
}

// Target returns the identity keep_registry would apply.
func (c *Conflict) Target() *model.Identity {
	if c.Match != nil {
		return c.Match
	}
	if c.Candidate != nil {
		return &c.Candidate.Identity
	}
	return nil
}

// SkipDefault reports the action SkipRemaining applied to one conflict.
type SkipDefault struct {
	Name   string
	Index  int
	Action model.Action
}

// ConflictError is a failure for one conflict in a batch.
type ConflictError struct {
	Err   error
	Index int
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict %d: %v", e.Index, e.Err)
}

func (e ConflictError) Unwrap() error { return e.Err }

// Resolver drives each conflict from pending to resolved or skipped.
// It is not safe for concurrent use.
type Resolver struct {
	registry  service.Registry
	logger    *slog.Logger
	policy    SkipPolicy
	conflicts []*Conflict
	created   int
}

// NewResolver creates a resolver over conflicts. Conflict indexes are
// reassigned to match their position.
func NewResolver(registry service.Registry, conflicts []*Conflict, policy SkipPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = SkipRegistryIfMatched
	}
	for i, c := range conflicts {
		c.Index = i
		if c.State == "" {
			c.State = model.StatePending
		}
	}
	return &Resolver{
		registry:  registry,
		logger:    logger,
		policy:    policy,
		conflicts: conflicts,
	}
}

// Conflicts returns every conflict in index order.
func (r *Resolver) Conflicts() []*Conflict {
	return r.conflicts
}

// Pending returns the conflicts still waiting for a decision.
func (r *Resolver) Pending() []*Conflict {
	var pending []*Conflict
	for _, c := range r.conflicts {
		if c.State == model.StatePending {
			pending = append(pending, c)
		}
	}
	return pending
}

// Done reports whether every conflict has left the pending state.
func (r *Resolver) Done() bool {
	for _, c := range r.conflicts {
		if c.State == model.StatePending {
			return false
		}
	}
	return true
}

// Created returns the number of identities this resolver created.
func (r *Resolver) Created() int {
	return r.created
}

// Resolve applies a decision to one conflict. A failed decision leaves the
// conflict pending. Re-applying the decision already recorded is a no-op.
func (r *Resolver) Resolve(ctx context.Context, res model.ConflictResolution) error {
	if res.RecordIndex < 0 || res.RecordIndex >= len(r.conflicts) {
		return fmt.Errorf("%w: index %d", ErrUnknownConflict, res.RecordIndex)
	}

	c := r.conflicts[res.RecordIndex]
	switch c.State {
	case model.StateResolved:
		if c.Resolution != nil && *c.Resolution == res {
			return nil
		}
		return fmt.Errorf("%w: conflict %d was resolved with %s", ErrAlreadyResolved, c.Index, c.Resolution.Action)
	case model.StateSkipped:
		return fmt.Errorf("%w: conflict %d was skipped", ErrAlreadyResolved, c.Index)
	case model.StatePending:
	}

	records, err := r.apply(ctx, c, res)
	if err != nil {
		r.logger.Debug("Resolution rejected",
			"conflict", c.Index,
			"name", c.Cluster.IdentityName,
			"action", res.Action.String(),
			"error", err)
		return err
	}

	c.Records = records
	c.Resolution = &res
	c.State = model.StateResolved

	r.logger.Debug("Conflict resolved",
		"conflict", c.Index,
		"name", c.Cluster.IdentityName,
		"action", res.Action.String(),
		"records", len(records))
	return nil
}

// BatchResolve applies action to every pending conflict, optionally only
// those of one type. Failures are collected and the batch continues.
func (r *Resolver) BatchResolve(ctx context.Context, action model.Action, filter *model.ConflictType) []ConflictError {
	var failures []ConflictError
	for _, c := range r.conflicts {
		if c.State != model.StatePending {
			continue
		}
		if filter != nil && c.Type != *filter {
			continue
		}
		if err := ctx.Err(); err != nil {
			failures = append(failures, ConflictError{Index: c.Index, Err: err})
			continue
		}
		if err := r.Resolve(ctx, model.ConflictResolution{RecordIndex: c.Index, Action: action}); err != nil {
			failures = append(failures, ConflictError{Index: c.Index, Err: err})
		}
	}
	return failures
}

// SkipRemaining moves every pending conflict to skipped, applying the skip
// policy. A default that cannot be applied, such as keep_registry against an
// invalid registry phone, falls back to use_imported. The applied defaults
// are returned so the caller can report them.
func (r *Resolver) SkipRemaining() []SkipDefault {
	var applied []SkipDefault
	for _, c := range r.conflicts {
		if c.State != model.StatePending {
			continue
		}

		action := model.ActionUseImported
		if r.policy == SkipRegistryIfMatched && c.Match != nil {
			action = model.ActionKeepRegistry
		}

		res := model.ConflictResolution{RecordIndex: c.Index, Action: action}
		records, err := r.apply(context.Background(), c, res)
		if err != nil {
			r.logger.Warn("Skip default failed, keeping imported data",
				"conflict", c.Index,
				"action", action.String(),
				"error", err)
			res.Action = model.ActionUseImported
			records = useImported(c)
		}

		c.Records = records
		c.Resolution = &res
		c.State = model.StateSkipped
		applied = append(applied, SkipDefault{Index: c.Index, Name: c.Cluster.IdentityName, Action: res.Action})
	}

	if len(applied) > 0 {
		r.logger.Info("Skipped remaining conflicts",
			"count", len(applied),
			"policy", string(r.policy))
	}
	return applied
}

// Records returns the reconciled records of every decided conflict.
func (r *Resolver) Records() []model.ReconciledRecord {
	var out []model.ReconciledRecord
	for _, c := range r.conflicts {
		out = append(out, c.Records...)
	}
	return out
}

func (r *Resolver) apply(ctx context.Context, c *Conflict, res model.ConflictResolution) ([]model.ReconciledRecord, error) {
	switch res.Action {
	case model.ActionKeepRegistry:
		return keepRegistry(c)
	case model.ActionUseImported:
		return useImported(c), nil
	case model.ActionManualEdit:
		return manualEdit(c, res)
	case model.ActionCreateIdentity:
		return r.createIdentity(ctx, c, res)
	default:
		return nil, common.NewValidationError("action", fmt.Sprintf("unsupported action %s", res.Action))
	}
}

func keepRegistry(c *Conflict) ([]model.ReconciledRecord, error) {
	target := c.Target()
	if target == nil {
		return nil, common.NewValidationError("action", "keep_registry needs a registry identity")
	}
	if err := normalize.PhoneError(target.Phone); err != nil {
		return nil, fmt.Errorf("registry phone of %q: %w", target.Name, err)
	}

	records := MemberRecords(c.Cluster, model.ProvenanceRegistry)
	for i := range records {
		records[i].FinalName = target.Name
		records[i].FinalPhone = normalize.Phone(target.Phone)
		records[i].IdentityID = target.ID
	}
	return records, nil
}

func useImported(c *Conflict) []model.ReconciledRecord {
	records := MemberRecords(c.Cluster, model.ProvenanceImported)
	if c.Match != nil {
		for i := range records {
			records[i].IdentityID = c.Match.ID
		}
	}
	return records
}

func manualEdit(c *Conflict, res model.ConflictResolution) ([]model.ReconciledRecord, error) {
	name := normalize.Sanitize(res.ManualName)

	var errs []error
	if normalize.Name(name) == "" {
		errs = append(errs, common.NewValidationError("name", "empty"))
	}
	if err := normalize.PhoneError(res.ManualPhone); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	records := MemberRecords(c.Cluster, model.ProvenanceManual)
	identityID := ""
	if target := c.Target(); target != nil && normalize.SameName(target.Name, name) {
		identityID = target.ID
	}
	for i := range records {
		records[i].FinalName = name
		records[i].IdentityID = identityID
	}

	if _, err := Propagate(name, res.ManualPhone, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Resolver) createIdentity(ctx context.Context, c *Conflict, res model.ConflictResolution) ([]model.ReconciledRecord, error) {
	name := normalize.Sanitize(c.Cluster.IdentityName)
	if res.ManualName != "" {
		name = normalize.Sanitize(res.ManualName)
	}
	phone := c.Cluster.PrimaryPhone
	if res.ManualPhone != "" {
		phone = res.ManualPhone
	}

	var errs []error
	if normalize.Name(name) == "" {
		errs = append(errs, common.NewValidationError("name", "empty"))
	}
	if err := normalize.PhoneError(phone); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var attrs model.Attributes
	if len(c.Cluster.Members) > 0 {
		attrs = c.Cluster.Members[0].Attributes.Clone()
	}

	identity, err := r.registry.CreateIdentity(ctx, name, normalize.Phone(phone), attrs)
	if err != nil {
		return nil, err
	}
	r.created++

	records := MemberRecords(c.Cluster, model.ProvenanceRegistry)
	for i := range records {
		records[i].FinalName = identity.Name
		records[i].IdentityID = identity.ID
	}
	if _, err := Propagate(identity.Name, identity.Phone, records); err != nil {
		return nil, err
	}

	r.logger.Info("Created identity",
		"id", identity.ID,
		"name", identity.Name,
		"records", len(records))
	return records, nil
}

// MemberRecords explodes a cluster back to one record per member, carrying
// the imported values and the member's own attributes.
func MemberRecords(c model.Cluster, provenance model.Provenance) []model.ReconciledRecord {
	records := make([]model.ReconciledRecord, len(c.Members))
	for i, m := range c.Members {
		records[i] = model.ReconciledRecord{
			SourceRowIndex:   m.SourceRowIndex,
			FinalName:        m.Name,
			FinalPhone:       normalize.Phone(m.Phone),
			SourceAttributes: m.Attributes.Clone(),
			Provenance:       provenance,
		}
	}
	return records
}
