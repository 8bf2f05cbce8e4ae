package genai

import "context"

// Mock is a canned generator for tests and for running the service without an
// API key.
type Mock struct {
	Tasks []GeneratedTask
	Err   error
	Calls int
}

func (m *Mock) GenerateTasks(_ context.Context, _ string) ([]GeneratedTask, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Tasks != nil {
		return append([]GeneratedTask(nil), m.Tasks...), nil
	}
	return []GeneratedTask{
		{Name: "Define requirements", Priority: "High", Step: 1},
		{Name: "Build a prototype", Priority: "Medium", Step: 2},
		{Name: "Write documentation", Priority: "Low", Step: 3},
	}, nil
}
