package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/model"
)

func exportRecords() []model.ReconciledRecord {
	return []model.ReconciledRecord{
		{
			SourceRowIndex: 0, FinalName: "John Doe", FinalPhone: "9876543210", IdentityID: "id-1",
			Provenance: model.ProvenanceRegistry,
			SourceAttributes: model.Attributes{
				{Key: "Outstanding", Value: model.NumberValue(decimal.RequireFromString("100"))},
			},
		},
		{
			SourceRowIndex: 1, FinalName: "Mary Major", Provenance: model.ProvenanceImported,
			SourceAttributes: model.Attributes{
				{Key: "Outstanding", Value: model.NumberValue(decimal.RequireFromString("25.5"))},
			},
		},
	}
}

func TestWriter_Write(t *testing.T) {
	api := NewMockAPI()
	summary := model.Summary{TotalRecords: 2, AutoLinked: 1, Skipped: 1}

	id, err := NewWriter(api, testConfig(), nil).Write(context.Background(), exportRecords(), summary)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	assert.Equal(t, []string{"'Reconciled'!A:ZZ"}, api.Cleared)
	require.Len(t, api.Updates, 1)
	values := api.Updates[0].Values
	assert.Equal(t, "'Reconciled'!A1", api.Updates[0].Range)

	require.Len(t, values, summaryRows+4)
	assert.Equal(t, []any{"Total Records", 2}, values[1])
	assert.Equal(t, []any{"Skipped", 1}, values[4])
	assert.Equal(t, "Name", values[summaryRows][1])
	assert.Equal(t, "John Doe", values[summaryRows+1][1])
	assert.Equal(t, "+91 9876543210", values[summaryRows+1][3])
	assert.Equal(t, "Total", values[summaryRows+3][0])
	assert.Equal(t, "125.50", values[summaryRows+3][6])

	require.Len(t, api.Formatting, 1)
	assert.Equal(t, int64(100+0), api.Formatting[0][0].RepeatCell.Range.SheetId)
}

func TestWriter_CreatesSpreadsheetAndBatches(t *testing.T) {
	api := NewMockAPI()
	cfg := testConfig()
	cfg.SpreadsheetID = ""
	cfg.BatchSize = 5
	cfg.EnableFormatting = false

	id, err := NewWriter(api, cfg, nil).Write(context.Background(), exportRecords(), model.Summary{})
	require.NoError(t, err)
	assert.Equal(t, "mock-sheet-1", id)
	assert.Equal(t, []string{"Reconciled Contacts"}, api.Created)

	require.Len(t, api.Updates, 3)
	assert.Equal(t, "'Reconciled'!A6", api.Updates[1].Range)
	assert.Equal(t, "'Reconciled'!A11", api.Updates[2].Range)
	assert.Empty(t, api.Formatting)
}

func TestWriter_FormattingFailureIsNotFatal(t *testing.T) {
	api := NewMockAPI()
	cfg := testConfig()
	cfg.RetryAttempts = 1
	api.FailNext("BatchUpdate", errors.New("boom"))

	_, err := NewWriter(api, cfg, nil).Write(context.Background(), exportRecords(), model.Summary{})
	assert.NoError(t, err)
}

func TestWriter_WriteFailure(t *testing.T) {
	api := NewMockAPI()
	cfg := testConfig()
	cfg.RetryAttempts = 2
	api.FailNext("UpdateValues", errors.New("boom"), errors.New("boom again"))

	_, err := NewWriter(api, cfg, nil).Write(context.Background(), exportRecords(), model.Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write data")
}
