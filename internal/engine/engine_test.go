package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/registry"
	"github.com/Veraticus/contact-sync/internal/resolve"
	"github.com/Veraticus/contact-sync/internal/service"
)

type fakeRegistry struct {
	listErr    error
	identities []model.Identity
	lists      int
	creates    int
}

func (f *fakeRegistry) ListAllIdentities(_ context.Context) ([]model.Identity, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Identity(nil), f.identities...), nil
}

func (f *fakeRegistry) CreateIdentity(_ context.Context, name, phone string, _ model.Attributes) (*model.Identity, error) {
	for _, id := range f.identities {
		if normalize.SameName(id.Name, name) {
			return nil, &common.DuplicateConflictError{Field: "name", Existing: id}
		}
		if normalize.SamePhone(id.Phone, phone) {
			return nil, &common.DuplicateConflictError{Field: "phone", Existing: id}
		}
	}
	f.creates++
	id := model.Identity{ID: fmt.Sprintf("new-%d", f.creates), Name: name, Phone: phone}
	f.identities = append(f.identities, id)
	return &id, nil
}

func newRegistry() *fakeRegistry {
	return &fakeRegistry{identities: []model.Identity{
		{ID: "r1", Name: "John Doe", Phone: "9876543210"},
		{ID: "r2", Name: "ABC Company Ltd", Phone: "5555555555"},
		{ID: "r3", Name: "Priya Sharma", Phone: "9822012345"},
	}}
}

func amount(v string) model.Attributes {
	return model.Attributes{{Key: "Outstanding", Value: model.NumberValue(decimal.RequireFromString(v))}}
}

func importBatch() []model.ImportRecord {
	return []model.ImportRecord{
		{SourceRowIndex: 0, Name: "John Doe", Phone: "98765 43210", Attributes: amount("100")},
		{SourceRowIndex: 1, Name: "john doe", Phone: "", Attributes: amount("50")},
		{SourceRowIndex: 2, Name: "  ABC   Company   Ltd  ", Phone: ""},
		{SourceRowIndex: 3, Name: "Priya Sharma", Phone: "9000000000"},
		{SourceRowIndex: 4, Name: "Priya Sharmaa", Phone: ""},
		{SourceRowIndex: 5, Name: "Mary Major", Phone: "9811111111"},
		{SourceRowIndex: 6, Name: "  ", Phone: "9876543210"},
	}
}

func newReconciler(reg service.Registry, cfg Config) *Reconciler {
	return NewWithConfig(reg, cfg, nil)
}

func TestStart_ClassifiesClusters(t *testing.T) {
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(context.Background(), importBatch())
	require.NoError(t, err)

	assert.Equal(t, 3, session.AutoLinked())

	conflicts := session.Conflicts()
	require.Len(t, conflicts, 3)

	assert.Equal(t, model.ConflictPhoneMismatch, conflicts[0].Type)
	assert.Equal(t, "r3", conflicts[0].Match.ID)

	assert.Equal(t, model.ConflictNameMismatch, conflicts[1].Type)
	require.NotNil(t, conflicts[1].Candidate)
	assert.Equal(t, "r3", conflicts[1].Candidate.Identity.ID)
	assert.Equal(t, match.TierHigh, conflicts[1].Candidate.Tier)
	assert.Nil(t, conflicts[1].Match)

	assert.Equal(t, model.ConflictNoMatch, conflicts[2].Type)
	assert.Nil(t, conflicts[2].Target())

	for i, c := range conflicts {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, model.StatePending, c.State)
	}
}

func TestFinalize_DefaultsAndOrder(t *testing.T) {
	clock := registry.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.Clock = clock

	session, err := newReconciler(newRegistry(), cfg).Start(context.Background(), importBatch())
	require.NoError(t, err)

	clock.Advance(1500 * time.Millisecond)
	result, err := session.Finalize()
	require.NoError(t, err)

	require.Len(t, result.Records, 7)
	for i, r := range result.Records {
		assert.Equal(t, i, r.SourceRowIndex, "records stay in input order")
	}

	john := result.Records[1]
	assert.Equal(t, "John Doe", john.FinalName)
	assert.Equal(t, "9876543210", john.FinalPhone, "registry phone fills the gap")
	assert.Equal(t, "r1", john.IdentityID)
	assert.Equal(t, model.ProvenanceRegistry, john.Provenance)

	abc := result.Records[2]
	assert.Equal(t, "ABC Company Ltd", abc.FinalName)
	assert.Equal(t, "5555555555", abc.FinalPhone)

	priya := result.Records[3]
	assert.Equal(t, "9822012345", priya.FinalPhone, "skip keeps the registry for exact matches")
	assert.Equal(t, model.ProvenanceRegistry, priya.Provenance)

	similar := result.Records[4]
	assert.Equal(t, "Priya Sharmaa", similar.FinalName)
	assert.Equal(t, model.ProvenanceImported, similar.Provenance)
	assert.Empty(t, similar.IdentityID)

	blank := result.Records[6]
	assert.Equal(t, model.ProvenanceImported, blank.Provenance)
	assert.Equal(t, "9876543210", blank.FinalPhone)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 6, result.Errors[0].RecordIndex)
	assert.Equal(t, model.ErrorValidation, result.Errors[0].ErrorType)

	require.Len(t, result.Defaults, 3)
	assert.Equal(t, model.ActionKeepRegistry, result.Defaults[0].Action)
	assert.Equal(t, model.ActionUseImported, result.Defaults[1].Action)
	assert.Equal(t, model.ActionUseImported, result.Defaults[2].Action)

	assert.Equal(t, model.Summary{
		TotalRecords:         7,
		AutoLinked:           3,
		NewIdentitiesCreated: 0,
		Skipped:              3,
		ErrorCount:           1,
		ProcessingTimeMs:     1500,
	}, result.Summary)
}

func TestStart_AutoAcceptTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoAcceptTier = match.TierHigh

	session, err := newReconciler(newRegistry(), cfg).Start(context.Background(), importBatch())
	require.NoError(t, err)

	assert.Equal(t, 4, session.AutoLinked())
	require.Len(t, session.Conflicts(), 2)
	assert.Equal(t, model.ConflictPhoneMismatch, session.Conflicts()[0].Type)
	assert.Equal(t, model.ConflictNoMatch, session.Conflicts()[1].Type)

	result, err := session.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", result.Records[4].FinalName)
	assert.Equal(t, "r3", result.Records[4].IdentityID)
}

func TestStart_IntraClusterConflictBlocksAutoLink(t *testing.T) {
	records := []model.ImportRecord{
		{SourceRowIndex: 0, Name: "John Doe", Phone: "9876543210"},
		{SourceRowIndex: 1, Name: "JOHN DOE", Phone: "9123456789"},
	}
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(context.Background(), records)
	require.NoError(t, err)

	assert.Zero(t, session.AutoLinked())
	require.Len(t, session.Conflicts(), 1)
	assert.Equal(t, model.ConflictPhoneMismatch, session.Conflicts()[0].Type)
	assert.Equal(t, []string{"9123456789"}, session.Conflicts()[0].Cluster.AlternatePhones)
}

func TestStart_InvalidRegistryPhoneBlocksAutoLink(t *testing.T) {
	reg := &fakeRegistry{identities: []model.Identity{{ID: "r1", Name: "John Doe", Phone: ""}}}
	records := []model.ImportRecord{{SourceRowIndex: 0, Name: "John Doe", Phone: "9876543210"}}

	session, err := newReconciler(reg, DefaultConfig()).Start(context.Background(), records)
	require.NoError(t, err)
	assert.Zero(t, session.AutoLinked())
	require.Len(t, session.Conflicts(), 1)
	assert.Equal(t, model.ConflictPhoneMismatch, session.Conflicts()[0].Type)

	result, err := session.Finalize()
	require.NoError(t, err)
	require.Len(t, result.Defaults, 1)
	assert.Equal(t, model.ActionUseImported, result.Defaults[0].Action, "an empty registry phone cannot be kept")

	rec := result.Records[0]
	assert.Equal(t, "9876543210", rec.FinalPhone, "imported phone survives")
	assert.Equal(t, "r1", rec.IdentityID)
	assert.Equal(t, model.ProvenanceImported, rec.Provenance)
}

func TestSession_KeepRegistryRejectsInvalidRegistryPhone(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{identities: []model.Identity{{ID: "r1", Name: "John Doe", Phone: "123"}}}
	records := []model.ImportRecord{{SourceRowIndex: 0, Name: "John Doe", Phone: "9876543210"}}

	session, err := newReconciler(reg, DefaultConfig()).Start(ctx, records)
	require.NoError(t, err)
	require.Len(t, session.Conflicts(), 1)

	err = session.Resolve(ctx, model.ConflictResolution{RecordIndex: 0, Action: model.ActionKeepRegistry})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, model.StatePending, session.Conflicts()[0].State)

	require.NoError(t, session.Resolve(ctx, model.ConflictResolution{RecordIndex: 0, Action: model.ActionUseImported}))
	result, err := session.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "9876543210", result.Records[0].FinalPhone)
}

func TestStart_RegistryUnavailable(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("connection refused")}
	cache := registry.NewCache(reg, registry.Config{Retry: service.RetryOptions{MaxAttempts: 1}}, nil)

	session, err := newReconciler(cache, DefaultConfig()).Start(context.Background(), importBatch())
	require.Error(t, err)
	assert.Nil(t, session, "no partial session")
	assert.ErrorIs(t, err, common.ErrRegistryUnavailable)

	var unavailable *common.RegistryUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestStart_PlainRegistryErrorIsWrapped(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("boom")}

	_, err := newReconciler(reg, DefaultConfig()).Start(context.Background(), importBatch())
	assert.ErrorIs(t, err, common.ErrRegistryUnavailable)
}

func TestStart_FetchesRegistryOnceThroughCache(t *testing.T) {
	reg := newRegistry()
	cache := registry.NewCache(reg, registry.Config{}, nil)
	r := newReconciler(cache, DefaultConfig())

	_, err := r.Start(context.Background(), importBatch())
	require.NoError(t, err)
	_, err = r.Start(context.Background(), importBatch())
	require.NoError(t, err)

	assert.Equal(t, 1, reg.lists)
}

func TestStart_DuplicateRowIndex(t *testing.T) {
	records := []model.ImportRecord{
		{SourceRowIndex: 0, Name: "A Person"},
		{SourceRowIndex: 0, Name: "B Person"},
	}
	_, err := newReconciler(newRegistry(), DefaultConfig()).Start(context.Background(), records)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStart_MalformedPhoneReported(t *testing.T) {
	records := []model.ImportRecord{{SourceRowIndex: 0, Name: "Mary Major", Phone: "12-34"}}

	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(context.Background(), records)
	require.NoError(t, err)

	result, err := session.Finalize()
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, normalize.ReasonTooShort)
	assert.Len(t, result.Records, 1)
}

func TestStart_EmptyBatch(t *testing.T) {
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(context.Background(), nil)
	require.NoError(t, err)

	result, err := session.Finalize()
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Zero(t, result.Summary.TotalRecords)
}

func TestSession_ResolveInteractively(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	session, err := newReconciler(reg, DefaultConfig()).Start(ctx, importBatch())
	require.NoError(t, err)

	var recorded []model.ConflictResolution
	session.OnResolved(func(_ context.Context, d model.SavedDecision) error {
		recorded = append(recorded, d.Resolution)
		return nil
	})

	prompter := NewMockPrompter(
		model.ConflictResolution{Action: model.ActionUseImported},
		model.ConflictResolution{Action: model.ActionManualEdit, ManualName: "", ManualPhone: "123"},
		model.ConflictResolution{Action: model.ActionManualEdit, ManualName: "Priya S", ManualPhone: "98220-99999"},
		model.ConflictResolution{Action: model.ActionCreateIdentity},
	)
	require.NoError(t, session.ResolveInteractively(ctx, prompter))

	prompts := prompter.Prompts()
	require.Len(t, prompts, 4)
	assert.Equal(t, Progress{Position: 2, Total: 3}, prompts[1].Progress)
	assert.Equal(t, Progress{Position: 2, Total: 3}, prompts[2].Progress, "rejected conflict is asked again")

	rejections := prompter.Rejections()
	require.Len(t, rejections, 1)
	assert.Equal(t, 1, rejections[0].Index)
	assert.ErrorIs(t, rejections[0].Err, common.ErrValidation)

	assert.Empty(t, prompter.Skipped())
	assert.Empty(t, session.Pending())
	require.Len(t, recorded, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{recorded[0].RecordIndex, recorded[1].RecordIndex, recorded[2].RecordIndex})

	result, err := session.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "9000000000", result.Records[3].FinalPhone)
	assert.Equal(t, "Priya S", result.Records[4].FinalName)
	assert.Equal(t, "9822099999", result.Records[4].FinalPhone)
	assert.Equal(t, model.ProvenanceManual, result.Records[4].Provenance)
	assert.Equal(t, "new-1", result.Records[5].IdentityID)
	assert.Equal(t, 1, result.Summary.NewIdentitiesCreated)
	assert.Zero(t, result.Summary.Skipped)
	assert.Empty(t, result.Defaults)
}

func TestSession_SkipFromPrompter(t *testing.T) {
	ctx := context.Background()
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(ctx, importBatch())
	require.NoError(t, err)

	prompter := NewMockPrompter(model.ConflictResolution{Action: model.ActionUseImported})
	require.NoError(t, session.ResolveInteractively(ctx, prompter))

	skipped := prompter.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, "Priya Sharmaa", skipped[0].Name)
	assert.Equal(t, model.ActionUseImported, skipped[0].Action)

	result, err := session.Finalize()
	require.NoError(t, err)
	assert.Len(t, result.Defaults, 2)
	assert.Equal(t, 2, result.Summary.Skipped)
}

func TestSession_ResolveInteractivelyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(ctx, importBatch())
	require.NoError(t, err)

	cancel()
	err = session.ResolveInteractively(ctx, NewMockPrompter())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, session.Pending(), 3)
}

func TestSession_BatchResolve(t *testing.T) {
	ctx := context.Background()
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(ctx, importBatch())
	require.NoError(t, err)

	var recorded []model.ConflictResolution
	session.OnResolved(func(_ context.Context, d model.SavedDecision) error {
		recorded = append(recorded, d.Resolution)
		return nil
	})

	failures := session.BatchResolve(ctx, model.ActionKeepRegistry, nil)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)
	assert.Len(t, recorded, 2)

	result, err := session.Finalize()
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 5, result.Errors[1].RecordIndex)
	assert.Equal(t, "Priya Sharma", result.Records[4].FinalName, "candidate confirmed by the batch")
	assert.Equal(t, 1, result.Summary.Skipped)
}

func TestSession_ApplyResolutionsResumes(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry()
	r := newReconciler(reg, DefaultConfig())

	first, err := r.Start(ctx, importBatch())
	require.NoError(t, err)

	var saved []model.SavedDecision
	first.OnResolved(func(_ context.Context, d model.SavedDecision) error {
		saved = append(saved, d)
		return nil
	})
	require.NoError(t, first.Resolve(ctx, model.ConflictResolution{RecordIndex: 1, Action: model.ActionKeepRegistry}))
	require.NoError(t, first.Resolve(ctx, model.ConflictResolution{RecordIndex: 0, Action: model.ActionUseImported}))
	require.Len(t, saved, 2)
	assert.Equal(t, "priya sharmaa", saved[0].ClusterKey)

	second, err := r.Start(ctx, importBatch())
	require.NoError(t, err)

	stale := model.SavedDecision{ClusterKey: "nobody", Resolution: model.ConflictResolution{Action: model.ActionUseImported}}
	applied, failures := second.ApplyResolutions(ctx, append(saved, stale))
	assert.Equal(t, 2, applied)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], resolve.ErrUnknownConflict)

	require.Len(t, second.Pending(), 1)
	assert.Equal(t, model.ConflictNoMatch, second.Pending()[0].Type)
}

func TestSession_RecorderFailure(t *testing.T) {
	ctx := context.Background()
	session, err := newReconciler(newRegistry(), DefaultConfig()).Start(ctx, importBatch())
	require.NoError(t, err)

	session.OnResolved(func(context.Context, model.SavedDecision) error {
		return errors.New("disk full")
	})

	err = session.Resolve(ctx, model.ConflictResolution{RecordIndex: 0, Action: model.ActionUseImported})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record decision")
	assert.Equal(t, model.StateResolved, session.Conflicts()[0].State)
}
