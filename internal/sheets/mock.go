package sheets

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// MockAPI is an in-memory implementation of API for testing. Values are
// kept per range string exactly as passed.
type MockAPI struct {
	Values     map[string][][]any
	Tabs       map[string]int64
	Errors     map[string][]error
	Updates    []MockUpdate
	Cleared    []string
	Formatting [][]*sheets.Request
	Created    []string
	mu         sync.Mutex
}

// MockUpdate records one UpdateValues call.
type MockUpdate struct {
	Range  string
	Values [][]any
}

// NewMockAPI creates an empty mock.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		Values: make(map[string][][]any),
		Tabs:   make(map[string]int64),
		Errors: make(map[string][]error),
	}
}

// FailNext queues errors returned by the named method before it succeeds.
// API errors are classified the way the real client classifies them.
func (m *MockAPI) FailNext(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[method] = append(m.Errors[method], errs...)
}

func (m *MockAPI) next(method string) error {
	queue := m.Errors[method]
	if len(queue) == 0 {
		return nil
	}
	m.Errors[method] = queue[1:]
	return classify(queue[0])
}

// GetValues returns the values stored for readRange.
func (m *MockAPI) GetValues(_ context.Context, _, readRange string) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("GetValues"); err != nil {
		return nil, err
	}
	return m.Values[readRange], nil
}

// ClearValues records the cleared range.
func (m *MockAPI) ClearValues(_ context.Context, _, clearRange string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("ClearValues"); err != nil {
		return err
	}
	m.Cleared = append(m.Cleared, clearRange)
	return nil
}

// UpdateValues records the update.
func (m *MockAPI) UpdateValues(_ context.Context, _, updateRange string, values [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("UpdateValues"); err != nil {
		return err
	}
	m.Updates = append(m.Updates, MockUpdate{Range: updateRange, Values: values})
	return nil
}

// CreateSpreadsheet returns a predictable ID.
func (m *MockAPI) CreateSpreadsheet(_ context.Context, title, _, tab string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("CreateSpreadsheet"); err != nil {
		return "", err
	}
	m.Created = append(m.Created, title)
	m.Tabs[tab] = 0
	return fmt.Sprintf("mock-sheet-%d", len(m.Created)), nil
}

// EnsureTab returns the tab's ID, adding it when missing.
func (m *MockAPI) EnsureTab(_ context.Context, _, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("EnsureTab"); err != nil {
		return 0, err
	}
	if id, ok := m.Tabs[title]; ok {
		return id, nil
	}
	id := int64(len(m.Tabs) + 100)
	m.Tabs[title] = id
	return id, nil
}

// BatchUpdate records the formatting requests.
func (m *MockAPI) BatchUpdate(_ context.Context, _ string, requests []*sheets.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.next("BatchUpdate"); err != nil {
		return err
	}
	m.Formatting = append(m.Formatting, requests)
	return nil
}
