package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

// MockPrompter is a test implementation of the Prompter interface. It answers
// from a script and skips the rest once the script runs out.
type MockPrompter struct {
	script     []model.ConflictResolution
	prompts    []MockPromptCall
	rejections []MockRejection
	skipped    []resolve.SkipDefault
	mu         sync.Mutex
}

// MockPromptCall records one question asked of the prompter.
type MockPromptCall struct {
	Name     string
	Type     model.ConflictType
	Progress Progress
}

// MockRejection records a decision the session refused.
type MockRejection struct {
	Err   error
	Index int
}

// NewMockPrompter creates a prompter answering with script in order.
func NewMockPrompter(script ...model.ConflictResolution) *MockPrompter {
	return &MockPrompter{script: script}
}

// ResolveConflict returns the next scripted decision.
func (m *MockPrompter) ResolveConflict(_ context.Context, conflict *resolve.Conflict, progress Progress) (model.ConflictResolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, MockPromptCall{
		Name:     conflict.Cluster.IdentityName,
		Type:     conflict.Type,
		Progress: progress,
	})

	if len(m.script) == 0 {
		return model.ConflictResolution{}, ErrSkipRemaining
	}
	next := m.script[0]
	m.script = m.script[1:]
	return next, nil
}

// ShowRejection records the rejected decision.
func (m *MockPrompter) ShowRejection(_ context.Context, conflict *resolve.Conflict, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, MockRejection{Index: conflict.Index, Err: err})
}

// ShowSkipped records the applied skip defaults.
func (m *MockPrompter) ShowSkipped(_ context.Context, defaults []resolve.SkipDefault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = append(m.skipped, defaults...)
}

// Prompts returns every question asked so far.
func (m *MockPrompter) Prompts() []MockPromptCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockPromptCall(nil), m.prompts...)
}

// Rejections returns every refused decision.
func (m *MockPrompter) Rejections() []MockRejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockRejection(nil), m.rejections...)
}

// Skipped returns the skip defaults reported to the prompter.
func (m *MockPrompter) Skipped() []resolve.SkipDefault {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]resolve.SkipDefault(nil), m.skipped...)
}
