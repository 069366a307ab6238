package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/resurrect-systems/resurrect/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses are matched by substring against the rendered prompt, so a
// single mock can answer every stage of a pipeline run.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string

	// Fail, when set, is returned from every Generate call.
	Fail error
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic artifact for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model, system, prompt string) (*Response, error) {
	if a.Fail != nil {
		return nil, a.Fail
	}
	if model == "" {
		model = "mock-1"
	}
	for marker, response := range a.responses {
		if strings.Contains(prompt, marker) {
			art := artifact.New(response, a.Name(), model, prompt)
			return &Response{Artifact: art}, nil
		}
	}
	content := fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	art := artifact.New(content, a.Name(), model, prompt)
	return &Response{Artifact: art}, nil
}
