package stage

import (
	"encoding/json"
	"strings"
	"text/template"
)

// SystemPrompt is the fixed system prompt sent with every stage call.
const SystemPrompt = `You are an expert build engineer who diagnoses and fixes failed CI/CD deployments.
You never execute code. You respond with a single JSON object and nothing else:
no prose, no markdown fences, no commentary.`

const analyzePromptText = `A deployment of project {{.ProjectName}} on branch {{.Branch}} failed.
{{- if .CommitMessage}}
Last commit: {{.CommitMessage}}
{{- end}}

Error message:
{{.ErrorMessage}}
{{- if .Logs}}

Build log (most recent {{len .Logs}} lines):
{{range .Logs}}{{.}}
{{end}}
{{- end}}
Analyze the failure. Respond with JSON:
{
  "errorType": one of "missing_module" | "type_error" | "syntax_error" | "dependency" | "build_config" | "env_var" | "other",
  "rootCause": short explanation of what broke,
  "affectedFile": path of the file most likely at fault (omit if unknown),
  "affectedLine": line number (omit if unknown),
  "severity": "low" | "medium" | "high" | "critical",
  "suggestedSearchQuery": a search query that would find a fix
}`

const searchPromptText = `A deployment failure was analyzed as:

{{.Analysis}}

Propose up to 3 concrete solutions, ordered from most to least likely to work.
Respond with JSON:
{
  "solutions": [
    {
      "description": what the solution does,
      "confidence": integer 0-100,
      "steps": ["step 1", "step 2", ...],
      "codeChanges": [{"file": path, "action": "create" | "modify" | "delete", "content": full new file content}]
    }
  ],
  "recommendedSolutionIndex": index of the best solution
}`

const generatePromptText = `A deployment failure was analyzed as:

{{.Analysis}}

Candidate solutions:

{{.Solutions}}

Produce the final fix for the recommended solution. Respond with JSON:
{
  "branchName": "resurrect-fix",
  "commitMessage": a conventional commit message,
  "changes": [{"file": path, "action": "create" | "modify" | "delete", "content": full new file content}],
  "prTitle": a pull request title,
  "prDescription": a pull request description explaining the failure and the fix
}`

var (
	analyzeTmpl  = template.Must(template.New("analyze").Parse(analyzePromptText))
	searchTmpl   = template.Must(template.New("search").Parse(searchPromptText))
	generateTmpl = template.Must(template.New("generate").Parse(generatePromptText))
)

func renderAnalyzePrompt(ec ErrorContext) (string, error) {
	errorMessage := ec.ErrorMessage
	if errorMessage == "" {
		errorMessage = "Build failed"
	}
	data := map[string]any{
		"ProjectName":   ec.ProjectName,
		"Branch":        ec.Branch,
		"CommitMessage": ec.CommitMessage,
		"ErrorMessage":  errorMessage,
		"Logs":          ec.CappedLogs(),
	}
	return render(analyzeTmpl, data)
}

func renderSearchPrompt(analysis AnalysisResult) (string, error) {
	serialized, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", err
	}
	return render(searchTmpl, map[string]any{"Analysis": string(serialized)})
}

func renderGeneratePrompt(analysis AnalysisResult, solutions SolutionSet) (string, error) {
	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", err
	}
	solutionsJSON, err := json.MarshalIndent(solutions, "", "  ")
	if err != nil {
		return "", err
	}
	return render(generateTmpl, map[string]any{
		"Analysis":  string(analysisJSON),
		"Solutions": string(solutionsJSON),
	})
}

func render(tmpl *template.Template, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
