// Package sources provides clients for the pipeline's external
// collaborators: the deployment-log service and the source-control file
// service. Both are reached through action-keyed JSON POST endpoints and
// injected into the orchestrator as interfaces so tests can substitute
// in-memory fakes.
package sources

import "context"

// LogSource fetches raw build logs for a deployment.
type LogSource interface {
	// BuildLogs returns the ordered log lines for a deployment. An empty
	// or missing log set is valid input, not an error.
	BuildLogs(ctx context.Context, deploymentID string) ([]string, error)
}

// FileRef identifies a file in a source-control repository.
type FileRef struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
}

// FileSource fetches a file's current content from source control.
type FileSource interface {
	FileContent(ctx context.Context, ref FileRef) (string, error)
}
