package llm

import (
	"context"
	"sync"
)

// MockGenerator is a configurable Generator for tests.
// Set GenerateFunc to control behavior. It is safe for concurrent use.
type MockGenerator struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns "mock description" and nil error.
	GenerateFunc func(ctx context.Context, sourceText, instructions string) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu      sync.Mutex
	sources []string
}

// NewMockGenerator creates a mock that always returns text.
func NewMockGenerator(text string) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: func(ctx context.Context, sourceText, instructions string) (string, error) {
			return text, nil
		},
	}
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, sourceText, instructions string) (string, error) {
	m.mu.Lock()
	m.sources = append(m.sources, sourceText)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, sourceText, instructions)
	}
	return "mock description", nil
}

// Model implements Generator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// Sources returns the source texts passed to Generate, in call order.
func (m *MockGenerator) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

var _ Generator = (*MockGenerator)(nil)
