package stage

// MaxLogLines bounds how many error-log lines are submitted to the model.
const MaxLogLines = 50

// FixBranchName is the branch every generated fix plan targets.
const FixBranchName = "resurrect-fix"

// ErrorContext is the immutable input to one pipeline run.
type ErrorContext struct {
	DeploymentID  string   `json:"deploymentId"`
	ProjectName   string   `json:"projectName"`
	Branch        string   `json:"branch"`
	CommitMessage string   `json:"commitMessage"`
	ErrorMessage  string   `json:"errorMessage"`
	ErrorLogs     []string `json:"errorLogs"`
}

// CappedLogs returns at most MaxLogLines of the most recent log lines.
func (c ErrorContext) CappedLogs() []string {
	if len(c.ErrorLogs) <= MaxLogLines {
		return c.ErrorLogs
	}
	return c.ErrorLogs[len(c.ErrorLogs)-MaxLogLines:]
}

// Severity grades how badly a failure breaks the deployment.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnalysisResult is the analyze stage output.
type AnalysisResult struct {
	ErrorType            string   `json:"errorType"`
	RootCause            string   `json:"rootCause"`
	AffectedFile         string   `json:"affectedFile,omitempty"`
	AffectedLine         int      `json:"affectedLine,omitempty"`
	Severity             Severity `json:"severity"`
	SuggestedSearchQuery string   `json:"suggestedSearchQuery"`
}

// ChangeAction says what a proposed change does to its file.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionModify ChangeAction = "modify"
	ActionDelete ChangeAction = "delete"
)

// ProposedChange is a single file edit proposed by the model.
type ProposedChange struct {
	File    string       `json:"file"`
	Action  ChangeAction `json:"action"`
	Content string       `json:"content"`
}

// Solution is one candidate fix from the search stage.
type Solution struct {
	Description string           `json:"description"`
	Confidence  int              `json:"confidence"`
	Steps       []string         `json:"steps"`
	CodeChanges []ProposedChange `json:"codeChanges"`
}

// SolutionSet is the search stage output.
type SolutionSet struct {
	Solutions                []Solution `json:"solutions"`
	RecommendedSolutionIndex int        `json:"recommendedSolutionIndex"`
}

// Recommended returns the recommended solution, or nil when the set is
// empty or the index is out of range.
func (s SolutionSet) Recommended() *Solution {
	if s.RecommendedSolutionIndex < 0 || s.RecommendedSolutionIndex >= len(s.Solutions) {
		return nil
	}
	return &s.Solutions[s.RecommendedSolutionIndex]
}

// FixPlan is the generate stage output: the structured patch proposal.
type FixPlan struct {
	BranchName    string           `json:"branchName"`
	CommitMessage string           `json:"commitMessage"`
	Changes       []ProposedChange `json:"changes"`
	PRTitle       string           `json:"prTitle"`
	PRDescription string           `json:"prDescription"`
}
