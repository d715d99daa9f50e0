package generator

import "context"

// MockGenerator returns canned outcomes for tests.
type MockGenerator struct {
	Outcome Outcome
	Err     error
	// LastContext records the most recent prompt context for assertions.
	LastContext PromptContext
}

// Generate records the context and returns the configured outcome.
func (m *MockGenerator) Generate(_ context.Context, pc PromptContext) (Outcome, error) {
	m.LastContext = pc
	if m.Err != nil {
		return Outcome{}, m.Err
	}
	return m.Outcome, nil
}

var _ Generator = (*MockGenerator)(nil)
