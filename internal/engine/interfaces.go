package engine

import (
	"context"
	"errors"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

// ErrSkipRemaining is returned by a Prompter to stop prompting and apply the
// skip defaults to every conflict still pending.
var ErrSkipRemaining = errors.New("skip remaining conflicts")

// Progress tells a prompter where it is in the conflict queue.
type Progress struct {
	Position int
	Total    int
}

// Prompter defines the contract for user interaction during conflict resolution.
type Prompter interface {
	ResolveConflict(ctx context.Context, conflict *resolve.Conflict, progress Progress) (model.ConflictResolution, error)
	ShowRejection(ctx context.Context, conflict *resolve.Conflict, err error)
	ShowSkipped(ctx context.Context, defaults []resolve.SkipDefault)
}

// ResolutionRecorder persists decisions as they are made so an interrupted
// session can be resumed.
type ResolutionRecorder func(ctx context.Context, decision model.SavedDecision) error
