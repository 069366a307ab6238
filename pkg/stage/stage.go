// Package stage implements the three model-backed pipeline stages:
// analyze, search, and generate. Each stage renders a prompt from prior
// context, makes one gateway call, and parses the response into a typed
// result. Malformed model output degrades to a fallback outcome; gateway
// failures propagate to the orchestrator.
package stage

import (
	"context"

	"github.com/resurrect-systems/resurrect/pkg/adapter"
	"github.com/resurrect-systems/resurrect/pkg/artifact"
	"github.com/resurrect-systems/resurrect/pkg/result"
)

// Outcome wraps a stage result: a typed value or the raw fallback text.
// Fallback outcomes still count as completed stages; the caller degrades
// to showing Raw to a human.
type Outcome[T any] struct {
	Value    T
	Fallback bool
	Raw      string
	Artifact *artifact.Artifact
}

// Runner executes stages against a single configured adapter and model.
type Runner struct {
	adapter adapter.Adapter
	model   string
}

// NewRunner creates a stage runner.
func NewRunner(a adapter.Adapter, model string) *Runner {
	if model == "" {
		models := a.Models()
		if len(models) > 0 {
			model = models[0]
		}
	}
	return &Runner{adapter: a, model: model}
}

// Analyze diagnoses the failure described by the error context.
func (r *Runner) Analyze(ctx context.Context, ec ErrorContext) (*Outcome[AnalysisResult], error) {
	prompt, err := renderAnalyzePrompt(ec)
	if err != nil {
		return nil, err
	}
	outcome, err := call[AnalysisResult](ctx, r, prompt)
	if err != nil {
		return nil, err
	}
	if !outcome.Fallback && outcome.Value.Severity == "" {
		outcome.Value.Severity = SeverityMedium
	}
	return outcome, nil
}

// Search proposes candidate solutions for an analyzed failure.
func (r *Runner) Search(ctx context.Context, analysis AnalysisResult) (*Outcome[SolutionSet], error) {
	prompt, err := renderSearchPrompt(analysis)
	if err != nil {
		return nil, err
	}
	outcome, err := call[SolutionSet](ctx, r, prompt)
	if err != nil {
		return nil, err
	}
	if !outcome.Fallback {
		for i := range outcome.Value.Solutions {
			outcome.Value.Solutions[i].Confidence = clampConfidence(outcome.Value.Solutions[i].Confidence)
		}
	}
	return outcome, nil
}

// Generate produces the final fix plan from the analysis and solutions.
func (r *Runner) Generate(ctx context.Context, analysis AnalysisResult, solutions SolutionSet) (*Outcome[FixPlan], error) {
	prompt, err := renderGeneratePrompt(analysis, solutions)
	if err != nil {
		return nil, err
	}
	outcome, err := call[FixPlan](ctx, r, prompt)
	if err != nil {
		return nil, err
	}
	// The branch name is fixed regardless of what the model returned.
	if !outcome.Fallback {
		outcome.Value.BranchName = FixBranchName
	}
	return outcome, nil
}

// call makes exactly one gateway call and parses the response.
func call[T any](ctx context.Context, r *Runner, prompt string) (*Outcome[T], error) {
	resp, err := r.adapter.Generate(ctx, r.model, SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	text := resp.Artifact.Content
	value, ok := result.Decode[T](text)
	return &Outcome[T]{
		Value:    value,
		Fallback: !ok,
		Raw:      text,
		Artifact: resp.Artifact,
	}, nil
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
