package agent

import (
	"time"

	"github.com/resurrect-systems/resurrect/pkg/classify"
	"github.com/resurrect-systems/resurrect/pkg/diffprep"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

// StageID identifies one of the four fixed pipeline stages.
type StageID string

const (
	StageAnalyze  StageID = "analyze"
	StageSearch   StageID = "search"
	StageGenerate StageID = "generate"
	StagePR       StageID = "pr"
)

// StageOrder is the fixed execution order. Stages never run out of order
// and are never skipped.
var StageOrder = [4]StageID{StageAnalyze, StageSearch, StageGenerate, StagePR}

// displayNames are the step names surfaced to callers.
var displayNames = map[StageID]string{
	StageAnalyze:  "Analyzing error",
	StageSearch:   "Searching for solutions",
	StageGenerate: "Generating fix",
	StagePR:       "Preparing pull request",
}

// StepStatus is the lifecycle state of one pipeline step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusCompleted StepStatus = "completed"
	StatusError     StepStatus = "error"
)

// AgentStep is one entry of the four-step run record. Exactly one exists
// per StageID per run; the full set is returned to the caller regardless
// of where the run stopped.
type AgentStep struct {
	ID        StageID                   `json:"id"`
	Name      string                    `json:"name"`
	Status    StepStatus                `json:"status"`
	Result    any                       `json:"result,omitempty"`
	Error     *classify.ClassifiedError `json:"error,omitempty"`
	Timestamp *time.Time                `json:"timestamp,omitempty"`
	Duration  time.Duration             `json:"-"`

	started time.Time
}

// FallbackResult is the step payload recorded when the model returned
// text that could not be parsed into the stage's typed shape.
type FallbackResult struct {
	RawResponse string `json:"rawResponse"`
}

// StepEvent is a step transition emitted by the orchestrator and consumed
// by the step tracker.
type StepEvent struct {
	RunID  string
	Stage  StageID
	Status StepStatus
	Result any
	Err    *classify.ClassifiedError
	At     time.Time
}

// Terminal reports whether this event ends the run: an error halts it,
// and a completed pr stage is the last transition of a successful run.
func (e StepEvent) Terminal() bool {
	if e.Status == StatusError {
		return true
	}
	return e.Stage == StagePR && e.Status == StatusCompleted
}

// Input identifies the failed deployment to remediate.
type Input struct {
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	Branch       string `json:"branch"`
	DeploymentID string `json:"deploymentId,omitempty"`
	ProjectID    string `json:"vercelProjectId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CommitMsg    string `json:"commitMessage,omitempty"`
}

// FixPayload is the assembled, reviewable fix returned by a run. An
// external source-control client applies it; this system never opens the
// pull request itself.
type FixPayload struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	BranchName    string                `json:"branchName"`
	CommitMessage string                `json:"commitMessage"`
	Changes       []diffprep.FileChange `json:"changes"`
	Confidence    int                   `json:"confidence"`
}

// RunResult is everything a run produced, complete or not.
type RunResult struct {
	RunID       string                    `json:"runId"`
	Steps       []AgentStep               `json:"steps"`
	Analysis    *stage.AnalysisResult     `json:"analysis,omitempty"`
	Fix         *FixPayload               `json:"fix,omitempty"`
	Explanation string                    `json:"explanation,omitempty"`
	Err         *classify.ClassifiedError `json:"error,omitempty"`
}

// Succeeded reports whether all four stages completed.
func (r *RunResult) Succeeded() bool {
	return r.Err == nil && r.Fix != nil
}
