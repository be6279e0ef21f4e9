package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
)

func TestCreateIdentity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	attrs := model.Attributes{
		{Key: "City", Value: model.StringValue("Pune")},
		{Key: "Customer ID", Value: model.StringValue("C-17")},
	}
	created, err := store.CreateIdentity(ctx, "  ABC   Company Ltd ", "+91 98765-43210", attrs)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ABC Company Ltd", created.Name)
	assert.Equal(t, "919876543210", created.Phone)
	assert.Equal(t, "Pune", created.Location)
	assert.Equal(t, "C-17", created.ExternalRef)

	got, err := store.GetIdentity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Phone, got.Phone)
	assert.Equal(t, created.Location, got.Location)
}

func TestCreateIdentity_Validation(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.CreateIdentity(context.Background(), " !! ", "123", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "invalid name")
	assert.Contains(t, err.Error(), "invalid phone")

	ids, err := store.ListAllIdentities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateIdentity_Duplicates(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	first, err := store.CreateIdentity(ctx, "John Doe", "9876543210", nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		newName   string
		newPhone  string
		wantField string
	}{
		{"same normalized name", "JOHN  doe.", "9123456789", "name"},
		{"same phone digits", "Jane Doe", "98765 43210", "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateIdentity(ctx, tt.newName, tt.newPhone, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrDuplicateEntry)

			var dup *common.DuplicateConflictError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, tt.wantField, dup.Field)
			assert.Equal(t, first.ID, dup.Existing.ID)
		})
	}

	ids, err := store.ListAllIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestListAllIdentities_InsertionOrder(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	names := []string{"Zed Zulu", "Amy Alpha", "Mo Mike"}
	for i, n := range names {
		_, err := store.CreateIdentity(ctx, n, fmt.Sprintf("980000000%d", i), nil)
		require.NoError(t, err)
	}

	ids, err := store.ListAllIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for i, n := range names {
		assert.Equal(t, n, ids[i].Name)
	}
}

func TestUpdateIdentityPhone(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	john, err := store.CreateIdentity(ctx, "John Doe", "9876543210", nil)
	require.NoError(t, err)
	jane, err := store.CreateIdentity(ctx, "Jane Doe", "9123456789", nil)
	require.NoError(t, err)

	require.NoError(t, store.UpdateIdentityPhone(ctx, john.ID, "98765-00000"))
	got, err := store.GetIdentity(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, "9876500000", got.Phone)

	require.NoError(t, store.UpdateIdentityPhone(ctx, john.ID, "9876500000"), "own phone is not a duplicate")

	err = store.UpdateIdentityPhone(ctx, john.ID, jane.Phone)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	err = store.UpdateIdentityPhone(ctx, john.ID, "12")
	assert.ErrorIs(t, err, common.ErrValidation)

	err = store.UpdateIdentityPhone(ctx, "missing", "9000000000")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteIdentity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	john, err := store.CreateIdentity(ctx, "John Doe", "9876543210", nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteIdentity(ctx, john.ID))
	_, err = store.GetIdentity(ctx, john.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.DeleteIdentity(ctx, john.ID), common.ErrNotFound)

	_, err = store.CreateIdentity(ctx, "John Doe", "9876543210", nil)
	assert.NoError(t, err, "a deleted identity frees its name and phone")
}
