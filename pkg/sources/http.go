package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPLogSource fetches build logs via the log collaborator's
// get_build_logs action.
type HTTPLogSource struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPLogSource creates a log source for the given endpoint URL.
func NewHTTPLogSource(endpoint string) *HTTPLogSource {
	return &HTTPLogSource{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type buildLogsRequest struct {
	Action       string `json:"action"`
	DeploymentID string `json:"deploymentId"`
}

type buildLogsResponse struct {
	Data struct {
		Events []struct {
			Payload struct {
				Text string `json:"text"`
			} `json:"payload"`
		} `json:"events"`
	} `json:"data"`
}

// BuildLogs returns the ordered log lines for a deployment.
func (s *HTTPLogSource) BuildLogs(ctx context.Context, deploymentID string) ([]string, error) {
	var resp buildLogsResponse
	err := postJSON(ctx, s.httpClient, s.endpoint, buildLogsRequest{
		Action:       "get_build_logs",
		DeploymentID: deploymentID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(resp.Data.Events))
	for _, event := range resp.Data.Events {
		if event.Payload.Text != "" {
			lines = append(lines, event.Payload.Text)
		}
	}
	return lines, nil
}

// HTTPFileSource fetches file content via the source-control
// collaborator's get_file action.
type HTTPFileSource struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPFileSource creates a file source for the given endpoint URL.
func NewHTTPFileSource(endpoint string) *HTTPFileSource {
	return &HTTPFileSource{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type getFileRequest struct {
	Action string `json:"action"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

type getFileResponse struct {
	Data struct {
		DecodedContent string `json:"decodedContent"`
	} `json:"data"`
}

// FileContent returns the current content of the referenced file.
func (s *HTTPFileSource) FileContent(ctx context.Context, ref FileRef) (string, error) {
	var resp getFileResponse
	err := postJSON(ctx, s.httpClient, s.endpoint, getFileRequest{
		Action: "get_file",
		Owner:  ref.Owner,
		Repo:   ref.Repo,
		Path:   ref.Path,
		Branch: ref.Branch,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Data.DecodedContent, nil
}

// postJSON posts a JSON body and decodes a JSON response.
func postJSON(ctx context.Context, client *http.Client, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collaborator returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
