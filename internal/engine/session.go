package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/registry"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

// Result is the outcome of a finished session. Records are in input order,
// one per input record.
type Result struct {
	Records  []model.ReconciledRecord
	Defaults []resolve.SkipDefault
	Errors   []model.RecordError
	Summary  model.Summary
}

// Session carries one reconciliation run between steps. The caller decides
// where decisions are persisted; see OnResolved.
type Session struct {
	started    time.Time
	clock      registry.Clock
	logger     *slog.Logger
	resolver   *resolve.Resolver
	recorder   ResolutionRecorder
	inputs     []model.ImportRecord
	linked     []model.ReconciledRecord
	errors     []model.RecordError
	defaults   []resolve.SkipDefault
	autoLinked int
}

// OnResolved registers a recorder called after every successful decision.
func (s *Session) OnResolved(recorder ResolutionRecorder) {
	s.recorder = recorder
}

// Conflicts returns every conflict in index order.
func (s *Session) Conflicts() []*resolve.Conflict {
	return s.resolver.Conflicts()
}

// Pending returns the conflicts still waiting for a decision.
func (s *Session) Pending() []*resolve.Conflict {
	return s.resolver.Pending()
}

// AutoLinked returns the number of records linked without a decision.
func (s *Session) AutoLinked() int {
	return s.autoLinked
}

// Resolve applies one decision and records it.
func (s *Session) Resolve(ctx context.Context, res model.ConflictResolution) error {
	if err := s.resolver.Resolve(ctx, res); err != nil {
		return err
	}
	return s.record(ctx, s.resolver.Conflicts()[res.RecordIndex])
}

// BatchResolve applies action to every pending conflict of the filter type,
// or of every type when filter is nil. Failures are kept as record errors and
// the conflicts stay pending.
func (s *Session) BatchResolve(ctx context.Context, action model.Action, filter *model.ConflictType) []resolve.ConflictError {
	pending := s.resolver.Pending()
	failures := s.resolver.BatchResolve(ctx, action, filter)

	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Index] = true
		s.addConflictError(s.resolver.Conflicts()[f.Index], f.Err)
	}

	for _, c := range pending {
		if failed[c.Index] || c.State != model.StateResolved {
			continue
		}
		if err := s.record(ctx, c); err != nil {
			failures = append(failures, resolve.ConflictError{Index: c.Index, Err: err})
		}
	}
	return failures
}

// ApplyResolutions replays decisions saved by an earlier run. Decisions are
// matched to conflicts by cluster key, so they survive renumbering. Decisions
// for clusters that no longer conflict, or that were already decided, are
// reported and otherwise ignored.
func (s *Session) ApplyResolutions(ctx context.Context, decisions []model.SavedDecision) (int, []resolve.ConflictError) {
	byKey := make(map[string]int, len(s.resolver.Conflicts()))
	for _, c := range s.resolver.Conflicts() {
		byKey[c.Key()] = c.Index
	}

	applied := 0
	var failures []resolve.ConflictError
	for _, d := range decisions {
		index, ok := byKey[d.ClusterKey]
		if !ok {
			failures = append(failures, resolve.ConflictError{
				Index: -1,
				Err:   fmt.Errorf("%w: cluster %q", resolve.ErrUnknownConflict, d.ClusterKey),
			})
			continue
		}

		res := d.Resolution
		res.RecordIndex = index
		if err := s.resolver.Resolve(ctx, res); err != nil {
			failures = append(failures, resolve.ConflictError{Index: index, Err: err})
			continue
		}
		applied++
	}

	if applied > 0 || len(failures) > 0 {
		s.logger.Info("Replayed saved decisions",
			"applied", applied,
			"failed", len(failures))
	}
	return applied, failures
}

// SkipRemaining applies the skip defaults to every pending conflict.
func (s *Session) SkipRemaining() []resolve.SkipDefault {
	applied := s.resolver.SkipRemaining()
	s.defaults = append(s.defaults, applied...)
	return applied
}

// ResolveInteractively asks the prompter about every pending conflict in
// order. A rejected decision is shown and the same conflict is asked again.
func (s *Session) ResolveInteractively(ctx context.Context, prompter Prompter) error {
	pending := s.resolver.Pending()
	for i, c := range pending {
		for c.State == model.StatePending {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := prompter.ResolveConflict(ctx, c, Progress{Position: i + 1, Total: len(pending)})
			if errors.Is(err, ErrSkipRemaining) {
				prompter.ShowSkipped(ctx, s.SkipRemaining())
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get decision for %q: %w", c.Cluster.IdentityName, err)
			}

			res.RecordIndex = c.Index
			if err := s.Resolve(ctx, res); err != nil {
				prompter.ShowRejection(ctx, c, err)
			}
		}
	}
	return nil
}

// Finalize skips whatever is still pending and assembles the result.
func (s *Session) Finalize() (*Result, error) {
	s.SkipRemaining()

	byRow := make(map[int]model.ReconciledRecord, len(s.inputs))
	for _, r := range s.linked {
		byRow[r.SourceRowIndex] = r
	}
	skipped := 0
	for _, c := range s.resolver.Conflicts() {
		if c.State == model.StateSkipped {
			skipped += len(c.Records)
		}
		for _, r := range c.Records {
			byRow[r.SourceRowIndex] = r
		}
	}

	records := make([]model.ReconciledRecord, 0, len(s.inputs))
	for _, in := range s.inputs {
		r, ok := byRow[in.SourceRowIndex]
		if !ok {
			err := &common.InvariantViolationError{
				Invariant: "one-output-per-input",
				Detail:    fmt.Sprintf("row %d has no reconciled record", in.SourceRowIndex),
			}
			common.LogError(err, "Reconciliation lost a record", common.Fields{"row": in.SourceRowIndex})
			return nil, err
		}
		records = append(records, r)
	}

	result := &Result{
		Records:  records,
		Defaults: s.defaults,
		Errors:   s.errors,
		Summary: model.Summary{
			TotalRecords:         len(s.inputs),
			AutoLinked:           s.autoLinked,
			NewIdentitiesCreated: s.resolver.Created(),
			Skipped:              skipped,
			ErrorCount:           len(s.errors),
			ProcessingTimeMs:     s.clock.Now().Sub(s.started).Milliseconds(),
		},
	}

	s.logger.Info("Reconciliation finished",
		"records", result.Summary.TotalRecords,
		"auto_linked", result.Summary.AutoLinked,
		"created", result.Summary.NewIdentitiesCreated,
		"skipped", result.Summary.Skipped,
		"errors", result.Summary.ErrorCount)
	return result, nil
}

func (s *Session) record(ctx context.Context, c *resolve.Conflict) error {
	if s.recorder == nil || c.Resolution == nil {
		return nil
	}
	decision := model.SavedDecision{ClusterKey: c.Key(), Resolution: *c.Resolution}
	if err := s.recorder(ctx, decision); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// link attaches every member of c to identity. It reports false, after
// recording the error, when propagation fails.
func (s *Session) link(c model.Cluster, identity model.Identity) bool {
	records := resolve.MemberRecords(c, model.ProvenanceRegistry)
	for i := range records {
		records[i].FinalName = identity.Name
		records[i].IdentityID = identity.ID
	}
	if _, err := resolve.Propagate(identity.Name, identity.Phone, records); err != nil {
		for _, m := range c.Members {
			s.addError(m, err)
		}
		return false
	}

	s.linked = append(s.linked, records...)
	s.autoLinked += len(records)
	return true
}

// collectRecordErrors reports rows that cannot be matched: an empty name
// keeps the row out of every cluster, so it passes through as imported. A
// malformed phone is reported but the row is still clustered.
func (s *Session) collectRecordErrors() {
	for _, in := range s.inputs {
		if normalize.Name(in.Name) == "" {
			s.addError(in, common.NewValidationError("name", "empty"))
			s.linked = append(s.linked, model.ReconciledRecord{
				SourceRowIndex:   in.SourceRowIndex,
				FinalName:        in.Name,
				FinalPhone:       normalize.Phone(in.Phone),
				SourceAttributes: in.Attributes.Clone(),
				Provenance:       model.ProvenanceImported,
			})
			continue
		}
		if in.Phone != "" {
			if err := normalize.PhoneError(in.Phone); err != nil {
				s.addError(in, err)
			}
		}
	}
}

func (s *Session) addError(in model.ImportRecord, err error) {
	s.errors = append(s.errors, model.RecordError{
		RecordIndex: in.SourceRowIndex,
		RecordName:  in.Name,
		ErrorType:   common.ErrorTypeOf(err),
		Message:     err.Error(),
	})
}

func (s *Session) addConflictError(c *resolve.Conflict, err error) {
	if len(c.Cluster.Members) == 0 {
		return
	}
	s.addError(c.Cluster.Members[0], err)
}
