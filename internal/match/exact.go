package match

import (
	"context"
	"log/slog"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/service"
)

// ExactMatcher looks names up against an in-memory registry snapshot.
type ExactMatcher struct {
	logger *slog.Logger
	index  map[string][]int
	ids    []model.Identity
}

// NewExactMatcher indexes the snapshot by normalized name, keeping registry order.
func NewExactMatcher(identities []model.Identity, logger *slog.Logger) *ExactMatcher {
	if logger == nil {
		logger = slog.Default()
	}

	index := make(map[string][]int, len(identities))
	for i, id := range identities {
		key := normalize.Name(id.Name)
		if key == "" {
			continue
		}
		index[key] = append(index[key], i)
	}

	return &ExactMatcher{
		logger: logger,
		index:  index,
		ids:    identities,
	}
}

// FindByName returns the first registry identity whose normalized name equals
// the normalized query. Duplicate registry names are logged, not rejected.
func (m *ExactMatcher) FindByName(name string) model.MatchResult {
	key := normalize.Name(name)
	if key == "" {
		return model.NoMatch()
	}

	hits := m.index[key]
	if len(hits) == 0 {
		return model.NoMatch()
	}

	identity := m.ids[hits[0]]
	if len(hits) > 1 {
		m.logger.Warn("Registry has several identities with the same normalized name, using the first",
			"name", key,
			"count", len(hits),
			"chosen_id", identity.ID)
	}

	return model.MatchResult{
		Identity:   &identity,
		Confidence: model.ConfidenceExact,
		MatchType:  model.MatchNameExact,
	}
}

// Len returns the number of identities in the snapshot.
func (m *ExactMatcher) Len() int {
	return len(m.ids)
}

// FindByName lists the registry once and matches name against it.
func FindByName(ctx context.Context, name string, lister service.IdentityLister) (model.MatchResult, error) {
	identities, err := lister.ListAllIdentities(ctx)
	if err != nil {
		return model.NoMatch(), err
	}
	return NewExactMatcher(identities, slog.Default()).FindByName(name), nil
}
