package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
)

func TestSessions_Lifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetSessionByFingerprint(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)

	session, err := store.CreateSession(ctx, "customers.csv", "abc")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	open, err := store.GetSessionByFingerprint(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, session.ID, open.ID)
	assert.Nil(t, open.CompletedAt)

	require.NoError(t, store.CompleteSession(ctx, session.ID))
	_, err = store.GetSessionByFingerprint(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound, "completed sessions are not resumed")

	assert.ErrorIs(t, store.CompleteSession(ctx, "missing"), common.ErrNotFound)
}

func TestSessions_Resolutions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "sheet:1abc", "fp")
	require.NoError(t, err)

	save := func(key string, res model.ConflictResolution) error {
		return store.SaveResolution(ctx, session.ID, model.SavedDecision{ClusterKey: key, Resolution: res})
	}

	require.NoError(t, save("mary major", model.ConflictResolution{RecordIndex: 2, Action: model.ActionCreateIdentity}))
	require.NoError(t, save("john doe", model.ConflictResolution{RecordIndex: 0, Action: model.ActionUseImported}))
	require.NoError(t, save("john doe", model.ConflictResolution{
		RecordIndex: 0, Action: model.ActionManualEdit, ManualName: "John D", ManualPhone: "9876543210",
	}), "a later decision replaces the earlier one")

	got, err := store.GetResolutions(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.SavedDecision{
		{ClusterKey: "john doe", Resolution: model.ConflictResolution{
			RecordIndex: 0, Action: model.ActionManualEdit, ManualName: "John D", ManualPhone: "9876543210",
		}},
		{ClusterKey: "mary major", Resolution: model.ConflictResolution{RecordIndex: 2, Action: model.ActionCreateIdentity}},
	}, got)

	err = save("priya", model.ConflictResolution{RecordIndex: 1, Action: model.Action(42)})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	err = save("", model.ConflictResolution{RecordIndex: 1, Action: model.ActionUseImported})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	err = store.SaveResolution(ctx, "no-such-session", model.SavedDecision{
		ClusterKey: "priya", Resolution: model.ConflictResolution{RecordIndex: 1, Action: model.ActionUseImported},
	})
	assert.Error(t, err, "foreign key rejects unknown sessions")
}

func TestReconciledRecords_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "customers.csv", "fp")
	require.NoError(t, err)

	records := []model.ReconciledRecord{
		{
			SourceRowIndex: 1,
			FinalName:      "Jane Smith",
			Provenance:     model.ProvenanceImported,
		},
		{
			SourceRowIndex: 0,
			FinalName:      "John Doe",
			FinalPhone:     "9876543210",
			IdentityID:     "id-1",
			Provenance:     model.ProvenanceRegistry,
			SourceAttributes: model.Attributes{
				{Key: "Total", Value: model.NumberValue(decimal.RequireFromString("1250.50"))},
				{Key: "Notes", Value: model.StringValue("vip")},
			},
		},
	}
	require.NoError(t, store.SaveReconciledRecords(ctx, session.ID, records))

	got, err := store.GetReconciledRecords(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "John Doe", got[0].FinalName, "ordered by source row")
	assert.Equal(t, model.ProvenanceRegistry, got[0].Provenance)
	assert.Equal(t, []string{"Total", "Notes"}, got[0].SourceAttributes.Keys())

	total, ok := got[0].SourceAttributes.Get("Total")
	require.True(t, ok)
	assert.Equal(t, model.KindNumber, total.Kind)
	assert.True(t, total.Num.Equal(decimal.RequireFromString("1250.5")))

	require.NoError(t, store.SaveReconciledRecords(ctx, session.ID, records[:1]))
	got, err = store.GetReconciledRecords(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1, "saving replaces the session's records")
}

func TestReconciledRecords_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "customers.csv", "fp")
	require.NoError(t, err)

	err = store.SaveReconciledRecords(ctx, session.ID, []model.ReconciledRecord{
		{SourceRowIndex: 0, FinalName: "A", Provenance: model.ProvenanceImported},
		{SourceRowIndex: 0, FinalName: "B", Provenance: model.ProvenanceImported},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = store.SaveReconciledRecords(ctx, session.ID, []model.ReconciledRecord{
		{SourceRowIndex: 0, FinalName: "A", Provenance: "guess"},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = store.SaveReconciledRecords(ctx, session.ID, nil)
	assert.ErrorIs(t, err, ErrNilParameter)
}
