package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/resurrect-systems/resurrect/pkg/adapter"
	"github.com/resurrect-systems/resurrect/pkg/agent"
	"github.com/resurrect-systems/resurrect/pkg/sources"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

var stageResponses = map[string]string{
	"Analyze the failure": `{
		"errorType": "missing_module",
		"rootCause": "lodash is not declared",
		"severity": "high",
		"suggestedSearchQuery": "missing module lodash"
	}`,
	"Propose up to 3": `{
		"solutions": [{"description": "declare lodash", "confidence": 80}],
		"recommendedSolutionIndex": 0
	}`,
	"Produce the final fix": `{
		"commitMessage": "fix: declare lodash",
		"changes": [{"file": "package.json", "action": "modify", "content": "{}"}],
		"prTitle": "Declare lodash",
		"prDescription": "declares the missing dependency"
	}`,
}

func newTestServer(a adapter.Adapter) *Server {
	runner := stage.NewRunner(a, "")
	orch := agent.New(runner, sources.NewMemoryLogSource(), sources.NewMemoryFileSource(nil))
	return New(orch, runner, ":0", time.Minute)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleFix(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapterWithResponses(stageResponses, ""))

	rec := postJSON(t, srv.Handler(), "/api/fix", map[string]string{
		"owner":  "octo",
		"repo":   "shop",
		"branch": "main",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success     bool              `json:"success"`
		Fix         *agent.FixPayload `json:"fix"`
		Explanation string            `json:"explanation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}
	if resp.Fix == nil || resp.Fix.BranchName != stage.FixBranchName {
		t.Fatalf("fix = %+v", resp.Fix)
	}
	if resp.Explanation != "lodash is not declared" {
		t.Fatalf("explanation = %q", resp.Explanation)
	}
}

func TestHandleFixMissingFields(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapter())

	rec := postJSON(t, srv.Handler(), "/api/fix", map[string]string{"owner": "octo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleFixRateLimitPassthrough(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.Fail = &adapter.AdapterError{Status: 429, Body: `{"message":"rate limit"}`}
	srv := newTestServer(mock)

	rec := postJSON(t, srv.Handler(), "/api/fix", map[string]string{
		"owner":  "octo",
		"repo":   "shop",
		"branch": "main",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var resp struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Steps   []agent.AgentStep `json:"steps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Fatalf("success = true on failure")
	}
	if resp.Error == "" {
		t.Fatalf("missing error message")
	}
	if len(resp.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(resp.Steps))
	}
}

func TestHandleStageAnalyze(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapterWithResponses(stageResponses, ""))

	rec := postJSON(t, srv.Handler(), "/api/stage", map[string]any{
		"action": "analyze_error",
		"errorContext": map[string]any{
			"projectName":  "shop",
			"branch":       "main",
			"errorMessage": "Cannot find module 'lodash'",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Action    string                `json:"action"`
		Result    *stage.AnalysisResult `json:"result"`
		Timestamp string                `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Action != "analyze_error" {
		t.Fatalf("action = %q", resp.Action)
	}
	if resp.Result == nil || resp.Result.ErrorType != "missing_module" {
		t.Fatalf("result = %+v", resp.Result)
	}
	if resp.Timestamp == "" {
		t.Fatalf("missing timestamp")
	}
}

func TestHandleStageGenerate(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapterWithResponses(stageResponses, ""))

	rec := postJSON(t, srv.Handler(), "/api/stage", map[string]any{
		"action":   "generate_fix",
		"analysis": map[string]any{"errorType": "missing_module"},
		"solutions": map[string]any{
			"solutions":                []map[string]any{{"description": "declare lodash", "confidence": 80}},
			"recommendedSolutionIndex": 0,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Result *stage.FixPlan `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Result == nil || resp.Result.BranchName != stage.FixBranchName {
		t.Fatalf("result = %+v", resp.Result)
	}
}

func TestHandleStageQuotaPassthrough(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.Fail = &adapter.AdapterError{Status: 402, Body: `{"message":"insufficient credits"}`}
	srv := newTestServer(mock)

	rec := postJSON(t, srv.Handler(), "/api/stage", map[string]any{
		"action":       "analyze_error",
		"errorContext": map[string]any{"errorMessage": "boom"},
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
}

func TestHandleStageUnknownAction(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapter())

	rec := postJSON(t, srv.Handler(), "/api/stage", map[string]any{"action": "open_pr"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStageMissingPayload(t *testing.T) {
	srv := newTestServer(adapter.NewMockAdapter())

	rec := postJSON(t, srv.Handler(), "/api/stage", map[string]any{"action": "search_solution"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
