// Package agent sequences the four-stage remediation pipeline: analyze,
// search, generate, then pr. The orchestrator holds no state
// across invocations; each Run is independent and safe to execute
// concurrently with others.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/resurrect-systems/resurrect/pkg/classify"
	"github.com/resurrect-systems/resurrect/pkg/diffprep"
	"github.com/resurrect-systems/resurrect/pkg/sources"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

// Orchestrator drives one pipeline run end to end. Collaborators are
// injected so tests can run against fakes.
type Orchestrator struct {
	runner   *stage.Runner
	logs     sources.LogSource
	files    sources.FileSource
	observer func(StepEvent)
	limit    int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a step-transition observer (the step tracker).
func WithObserver(fn func(StepEvent)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithFetchLimit bounds concurrent file fetches in the pr stage.
func WithFetchLimit(n int) Option {
	return func(o *Orchestrator) {
		o.limit = n
	}
}

// New creates an Orchestrator.
func New(runner *stage.Runner, logs sources.LogSource, files sources.FileSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner: runner,
		logs:   logs,
		files:  files,
		limit:  diffprep.DefaultFetchLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one pipeline over a fresh error context. It always
// returns all four steps; after a stage error the remaining steps stay
// pending and are never retried here.
func (o *Orchestrator) Run(ctx context.Context, in Input) *RunResult {
	runID := newRunID()
	log := clog.FromContext(ctx).With("run_id", runID, "repo", in.Owner+"/"+in.Repo)

	res := &RunResult{RunID: runID, Steps: PendingSteps()}
	ec := o.buildContext(ctx, in)
	log.Infof("starting remediation run (%d log lines)", len(ec.ErrorLogs))

	// Stage 1: analyze.
	if !o.begin(ctx, res, StageAnalyze) {
		return res
	}
	analysisOut, err := o.runner.Analyze(ctx, ec)
	if err != nil {
		return o.fail(res, StageAnalyze, err, log)
	}
	o.complete(res, StageAnalyze, outcomeResult(analysisOut))
	analysis := analysisOut.Value
	if !analysisOut.Fallback {
		res.Analysis = &analysis
	}

	// Stage 2: search.
	if !o.begin(ctx, res, StageSearch) {
		return res
	}
	searchOut, err := o.runner.Search(ctx, analysis)
	if err != nil {
		return o.fail(res, StageSearch, err, log)
	}
	o.complete(res, StageSearch, outcomeResult(searchOut))

	// Stage 3: generate.
	if !o.begin(ctx, res, StageGenerate) {
		return res
	}
	planOut, err := o.runner.Generate(ctx, analysis, searchOut.Value)
	if err != nil {
		return o.fail(res, StageGenerate, err, log)
	}
	o.complete(res, StageGenerate, outcomeResult(planOut))

	// Stage 4: pr. No model call; pairs proposed changes with original
	// content and assembles the PR metadata.
	if !o.begin(ctx, res, StagePR) {
		return res
	}
	fix := o.preparePR(ctx, in, analysisOut, searchOut, planOut)
	o.complete(res, StagePR, fix)
	res.Fix = fix
	res.Explanation = explanation(analysisOut)

	log.Infof("run completed: %d file changes, confidence %d", len(fix.Changes), fix.Confidence)
	return res
}

// buildContext assembles the immutable error context, fetching build
// logs when a deployment id is present. A missing or empty log set is
// valid input; the error message falls back to a generic one.
func (o *Orchestrator) buildContext(ctx context.Context, in Input) stage.ErrorContext {
	var lines []string
	if in.DeploymentID != "" && o.logs != nil {
		fetched, err := o.logs.BuildLogs(ctx, in.DeploymentID)
		if err != nil {
			clog.FromContext(ctx).Warnf("build logs unavailable: %v", err)
		} else {
			lines = fetched
		}
	}

	errorMessage := in.ErrorMessage
	if errorMessage == "" && len(lines) > 0 {
		errorMessage = lines[len(lines)-1]
	}
	if errorMessage == "" {
		errorMessage = "Build failed"
	}

	projectName := in.Repo
	if in.ProjectID != "" {
		projectName = in.ProjectID
	}

	return stage.ErrorContext{
		DeploymentID:  in.DeploymentID,
		ProjectName:   projectName,
		Branch:        in.Branch,
		CommitMessage: in.CommitMsg,
		ErrorMessage:  errorMessage,
		ErrorLogs:     lines,
	}
}

// preparePR builds the final fix payload from the generate stage output.
func (o *Orchestrator) preparePR(
	ctx context.Context,
	in Input,
	analysisOut *stage.Outcome[stage.AnalysisResult],
	searchOut *stage.Outcome[stage.SolutionSet],
	planOut *stage.Outcome[stage.FixPlan],
) *FixPayload {
	plan := planOut.Value
	preparer := diffprep.New(o.files, o.limit)
	changes := preparer.Prepare(ctx, in.Owner, in.Repo, in.Branch, plan.Changes)

	title := plan.PRTitle
	if title == "" {
		title = fmt.Sprintf("Fix failed deployment on %s", in.Branch)
	}
	commitMessage := plan.CommitMessage
	if commitMessage == "" {
		commitMessage = "fix: resolve deployment failure"
	}

	return &FixPayload{
		Title:         title,
		Description:   plan.PRDescription,
		BranchName:    stage.FixBranchName,
		CommitMessage: commitMessage,
		Changes:       changes,
		Confidence:    confidence(analysisOut, searchOut, planOut),
	}
}

// confidence derives the payload confidence from the recommended
// solution, degraded when any stage fell back to raw text.
func confidence(
	analysisOut *stage.Outcome[stage.AnalysisResult],
	searchOut *stage.Outcome[stage.SolutionSet],
	planOut *stage.Outcome[stage.FixPlan],
) int {
	c := 50
	if rec := searchOut.Value.Recommended(); rec != nil {
		c = rec.Confidence
	}
	if analysisOut.Fallback || searchOut.Fallback || planOut.Fallback {
		c = min(c, 30)
	}
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return c
}

// explanation is the human-readable summary returned to the caller.
func explanation(analysisOut *stage.Outcome[stage.AnalysisResult]) string {
	if analysisOut.Fallback {
		return analysisOut.Raw
	}
	return analysisOut.Value.RootCause
}

// begin marks a stage running. It returns false when the caller abandoned
// the run at the stage boundary, in which case the stage is marked as
// errored and the run halts.
func (o *Orchestrator) begin(ctx context.Context, res *RunResult, id StageID) bool {
	if err := ctx.Err(); err != nil {
		cerr := classify.FromError(err)
		o.transition(res, id, StatusError, nil, cerr)
		res.Err = cerr
		return false
	}
	o.transition(res, id, StatusRunning, nil, nil)
	return true
}

// complete marks a stage completed with its result.
func (o *Orchestrator) complete(res *RunResult, id StageID, result any) {
	o.transition(res, id, StatusCompleted, result, nil)
}

// fail marks a stage errored with the classified failure and halts the
// run. Later stages keep their pending status.
func (o *Orchestrator) fail(res *RunResult, id StageID, err error, log *clog.Logger) *RunResult {
	cerr := classify.FromError(err)
	log.Errorf("stage %s failed: %s", id, cerr.Kind)
	o.transition(res, id, StatusError, nil, cerr)
	res.Err = cerr
	return res
}

// transition mutates the step record and notifies the observer.
func (o *Orchestrator) transition(res *RunResult, id StageID, status StepStatus, result any, cerr *classify.ClassifiedError) {
	now := time.Now().UTC()
	for i := range res.Steps {
		if res.Steps[i].ID != id {
			continue
		}
		res.Steps[i].Status = status
		res.Steps[i].Error = cerr
		if result != nil {
			res.Steps[i].Result = result
		}
		if status == StatusCompleted || status == StatusError {
			res.Steps[i].Timestamp = &now
			if prev := res.Steps[i].Duration; prev == 0 {
				res.Steps[i].Duration = now.Sub(startOf(res.Steps[i], now))
			}
		}
		if status == StatusRunning {
			res.Steps[i].started = now
		}
		break
	}

	if o.observer != nil {
		o.observer(StepEvent{
			RunID:  res.RunID,
			Stage:  id,
			Status: status,
			Result: result,
			Err:    cerr,
			At:     now,
		})
	}
}

func startOf(s AgentStep, fallback time.Time) time.Time {
	if s.started.IsZero() {
		return fallback
	}
	return s.started
}

// outcomeResult selects the step payload: the typed value, or the raw
// fallback wrapper when parsing degraded.
func outcomeResult[T any](out *stage.Outcome[T]) any {
	if out.Fallback {
		return FallbackResult{RawResponse: out.Raw}
	}
	return out.Value
}

// PendingSteps returns the four steps in order, all pending.
func PendingSteps() []AgentStep {
	steps := make([]AgentStep, 0, len(StageOrder))
	for _, id := range StageOrder {
		steps = append(steps, AgentStep{ID: id, Name: displayNames[id], Status: StatusPending})
	}
	return steps
}

func newRunID() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UTC().UnixNano())))
	return hex.EncodeToString(sum[:6])
}
