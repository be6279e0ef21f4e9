package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/engine"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

func phoneConflict() *resolve.Conflict {
	return &resolve.Conflict{
		Index: 3,
		Type:  model.ConflictPhoneMismatch,
		Match: &model.Identity{ID: "r1", Name: "John Doe", Phone: "9876543210"},
		Cluster: model.Cluster{
			IdentityName:     "John Doe",
			PrimaryPhone:     "9123456789",
			TotalOutstanding: decimal.RequireFromString("150"),
			Members: []model.ImportRecord{
				{SourceRowIndex: 0, Name: "John Doe", Phone: "91234 56789"},
				{SourceRowIndex: 4, Name: "john doe"},
			},
		},
	}
}

func noMatchConflict() *resolve.Conflict {
	return &resolve.Conflict{
		Index: 0,
		Type:  model.ConflictNoMatch,
		Cluster: model.Cluster{
			IdentityName: "Mary Major",
			Members:      []model.ImportRecord{{SourceRowIndex: 2, Name: "Mary Major"}},
		},
	}
}

func TestPrompter_ResolveConflict(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		conflict *resolve.Conflict
		expected model.ConflictResolution
	}{
		{
			name:     "keep registry",
			input:    "k\n",
			conflict: phoneConflict(),
			expected: model.ConflictResolution{RecordIndex: 3, Action: model.ActionKeepRegistry},
		},
		{
			name:     "use imported",
			input:    "I\n",
			conflict: phoneConflict(),
			expected: model.ConflictResolution{RecordIndex: 3, Action: model.ActionUseImported},
		},
		{
			name:     "manual edit with defaults",
			input:    "m\n\n\n",
			conflict: phoneConflict(),
			expected: model.ConflictResolution{
				RecordIndex: 3, Action: model.ActionManualEdit,
				ManualName: "John Doe", ManualPhone: "9123456789",
			},
		},
		{
			name:     "manual edit typed",
			input:    "m\nJohnny Doe\n98765 00000\n",
			conflict: phoneConflict(),
			expected: model.ConflictResolution{
				RecordIndex: 3, Action: model.ActionManualEdit,
				ManualName: "Johnny Doe", ManualPhone: "98765 00000",
			},
		},
		{
			name:     "create identity asks for a missing phone",
			input:    "c\n9811111111\n",
			conflict: noMatchConflict(),
			expected: model.ConflictResolution{
				RecordIndex: 0, Action: model.ActionCreateIdentity, ManualPhone: "9811111111",
			},
		},
		{
			name:     "keep registry is not offered without a target",
			input:    "k\ni\n",
			conflict: noMatchConflict(),
			expected: model.ConflictResolution{RecordIndex: 0, Action: model.ActionUseImported},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out, "91")

			res, err := p.ResolveConflict(context.Background(), tt.conflict, engine.Progress{Position: 1, Total: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res)
			assert.Contains(t, out.String(), "Conflict 1 of 2")
		})
	}
}

func TestPrompter_ShowsConflictDetails(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("i\n"), &out, "91")

	_, err := p.ResolveConflict(context.Background(), phoneConflict(), engine.Progress{Position: 1, Total: 1})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "phone mismatch")
	assert.Contains(t, output, "+91 9123456789")
	assert.Contains(t, output, "+91 9876543210")
	assert.Contains(t, output, "150.00")
	assert.Contains(t, output, "#5 john doe")
	assert.Contains(t, output, "[K] Keep registry")
}

func TestPrompter_ShowsCandidate(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("k\n"), &out, "")

	conflict := noMatchConflict()
	conflict.Type = model.ConflictNameMismatch
	conflict.Candidate = &match.Candidate{
		Identity: model.Identity{ID: "r9", Name: "Mary Majors", Phone: "9811111111"},
		Score:    0.92,
		Tier:     match.TierHigh,
	}

	res, err := p.ResolveConflict(context.Background(), conflict, engine.Progress{Position: 1, Total: 1})
	require.NoError(t, err)
	assert.Equal(t, model.ActionKeepRegistry, res.Action)
	assert.Contains(t, out.String(), "Mary Majors")
	assert.Contains(t, out.String(), "92%")
}

func TestPrompter_SkipAndErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("skip remaining", func(t *testing.T) {
		p := NewPrompter(strings.NewReader("s\n"), &bytes.Buffer{}, "")
		_, err := p.ResolveConflict(ctx, phoneConflict(), engine.Progress{Position: 1, Total: 1})
		assert.ErrorIs(t, err, engine.ErrSkipRemaining)
	})

	t.Run("invalid then valid", func(t *testing.T) {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader("x\ni\n"), &out, "")
		res, err := p.ResolveConflict(ctx, phoneConflict(), engine.Progress{Position: 1, Total: 1})
		require.NoError(t, err)
		assert.Equal(t, model.ActionUseImported, res.Action)
		assert.Contains(t, out.String(), "Invalid choice")
	})

	t.Run("input ends", func(t *testing.T) {
		p := NewPrompter(strings.NewReader(""), &bytes.Buffer{}, "")
		_, err := p.ResolveConflict(ctx, phoneConflict(), engine.Progress{Position: 1, Total: 1})
		assert.ErrorContains(t, err, "input terminated")
	})

	t.Run("canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		p := NewPrompter(strings.NewReader("i\n"), &bytes.Buffer{}, "")
		_, err := p.ResolveConflict(canceled, phoneConflict(), engine.Progress{Position: 1, Total: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPrompter_DrivesSession(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("m\n\n123\nm\n\n9876500000\n"), &out, "")
	p.SetTotal(1)

	conflict := phoneConflict()
	ctx := context.Background()

	res, err := p.ResolveConflict(ctx, conflict, engine.Progress{Position: 1, Total: 1})
	require.NoError(t, err)
	p.ShowRejection(ctx, conflict, common.NewValidationError("phone", "too short"))

	res2, err := p.ResolveConflict(ctx, conflict, engine.Progress{Position: 1, Total: 1})
	require.NoError(t, err)
	p.Finish()

	assert.Equal(t, "123", res.ManualPhone)
	assert.Equal(t, "9876500000", res2.ManualPhone)
	assert.Contains(t, out.String(), "invalid phone: too short")
}

func TestPrompter_ShowSkipped(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(""), &out, "")

	p.ShowSkipped(context.Background(), nil)
	assert.Empty(t, out.String())

	p.ShowSkipped(context.Background(), []resolve.SkipDefault{
		{Index: 0, Name: "John Doe", Action: model.ActionKeepRegistry},
		{Index: 1, Name: "Mary Major", Action: model.ActionUseImported},
	})
	assert.Contains(t, out.String(), "Skipped 2 conflicts")
	assert.Contains(t, out.String(), "Mary Major → use_imported")
}

func TestRenderSummary(t *testing.T) {
	errs := make([]model.RecordError, 12)
	for i := range errs {
		errs[i] = model.RecordError{RecordIndex: i, RecordName: "Row", Message: errors.New("invalid phone: too short").Error()}
	}

	out := RenderSummary(model.Summary{TotalRecords: 4, AutoLinked: 3, ErrorCount: 12, ProcessingTimeMs: 42}, errs)
	assert.Contains(t, out, "Auto-linked: 3 (75.0%)")
	assert.Contains(t, out, "42ms")
	assert.Contains(t, out, "row 1 (Row): invalid phone: too short")
	assert.Contains(t, out, "and 2 more")
	assert.NotContains(t, out, "row 11 ")
}
