// Package server exposes the remediation pipeline over HTTP: a webhook
// endpoint that runs the full pipeline, and a stage endpoint that
// invokes individual stages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/resurrect-systems/resurrect/pkg/agent"
	"github.com/resurrect-systems/resurrect/pkg/classify"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

// Server handles webhook and stage invocation requests.
type Server struct {
	orch         *agent.Orchestrator
	runner       *stage.Runner
	addr         string
	stageTimeout time.Duration
}

// New creates a Server. The orchestrator serves the webhook endpoint
// and the runner serves per-stage invocations.
func New(orch *agent.Orchestrator, runner *stage.Runner, addr string, stageTimeout time.Duration) *Server {
	return &Server{
		orch:         orch,
		runner:       runner,
		addr:         addr,
		stageTimeout: stageTimeout,
	}
}

// Handler returns the HTTP handler for the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fix", s.handleFix)
	mux.HandleFunc("POST /api/stage", s.handleStage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	clog.FromContext(ctx).Infof("listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// fixRequest is the webhook trigger body.
type fixRequest struct {
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	Branch        string `json:"branch"`
	DeploymentID  string `json:"deploymentId,omitempty"`
	ProjectID     string `json:"vercelProjectId,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	CommitMessage string `json:"commitMessage,omitempty"`
}

// fixResponse is the webhook trigger response.
type fixResponse struct {
	Success     bool                  `json:"success"`
	Analysis    *stage.AnalysisResult `json:"analysis,omitempty"`
	Fix         *agent.FixPayload     `json:"fix,omitempty"`
	Explanation string                `json:"explanation,omitempty"`
	Steps       []agent.AgentStep     `json:"steps,omitempty"`
	Error       string                `json:"error,omitempty"`
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, fixResponse{Success: false, Error: "invalid request body"})
		return
	}
	if req.Owner == "" || req.Repo == "" || req.Branch == "" {
		writeJSON(w, http.StatusBadRequest, fixResponse{Success: false, Error: "owner, repo and branch are required"})
		return
	}

	log = log.With("owner", req.Owner, "repo", req.Repo, "branch", req.Branch)
	log.Infof("fix requested")

	res := s.orch.Run(clog.WithLogger(ctx, log), agent.Input{
		Owner:        req.Owner,
		Repo:         req.Repo,
		Branch:       req.Branch,
		DeploymentID: req.DeploymentID,
		ProjectID:    req.ProjectID,
		ErrorMessage: req.ErrorMessage,
		CommitMsg:    req.CommitMessage,
	})

	if !res.Succeeded() {
		status := http.StatusBadGateway
		msg := "fix generation failed"
		if res.Err != nil {
			status = statusForKind(res.Err.Kind)
			msg = res.Err.UserMessage()
		}
		writeJSON(w, status, fixResponse{Success: false, Error: msg, Steps: res.Steps})
		return
	}

	writeJSON(w, http.StatusOK, fixResponse{
		Success:     true,
		Analysis:    res.Analysis,
		Fix:         res.Fix,
		Explanation: res.Explanation,
		Steps:       res.Steps,
	})
}

// stageRequest is one stage invocation. Action selects the stage and
// the matching payload field carries its input.
type stageRequest struct {
	Action       string                `json:"action"`
	ErrorContext *stage.ErrorContext   `json:"errorContext,omitempty"`
	Analysis     *stage.AnalysisResult `json:"analysis,omitempty"`
	Solutions    *stage.SolutionSet    `json:"solutions,omitempty"`
}

// stageResponse echoes the action with the stage result.
type stageResponse struct {
	Action    string `json:"action"`
	Result    any    `json:"result"`
	Timestamp string `json:"timestamp"`
}

type stageError struct {
	Error string `json:"error"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, stageError{Error: "invalid request body"})
		return
	}

	if s.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.stageTimeout)
		defer cancel()
	}

	log.Infof("stage invocation: %s", req.Action)

	var result any
	var err error
	switch req.Action {
	case "analyze_error":
		if req.ErrorContext == nil {
			writeJSON(w, http.StatusBadRequest, stageError{Error: "errorContext is required"})
			return
		}
		var out *stage.Outcome[stage.AnalysisResult]
		out, err = s.runner.Analyze(ctx, *req.ErrorContext)
		result = stageResult(out)
	case "search_solution":
		if req.Analysis == nil {
			writeJSON(w, http.StatusBadRequest, stageError{Error: "analysis is required"})
			return
		}
		var out *stage.Outcome[stage.SolutionSet]
		out, err = s.runner.Search(ctx, *req.Analysis)
		result = stageResult(out)
	case "generate_fix":
		if req.Analysis == nil || req.Solutions == nil {
			writeJSON(w, http.StatusBadRequest, stageError{Error: "analysis and solutions are required"})
			return
		}
		var out *stage.Outcome[stage.FixPlan]
		out, err = s.runner.Generate(ctx, *req.Analysis, *req.Solutions)
		result = stageResult(out)
	default:
		writeJSON(w, http.StatusBadRequest, stageError{Error: "unknown action: " + req.Action})
		return
	}

	if err != nil {
		cerr := classify.FromError(err)
		log.Errorf("stage %s failed: %v", req.Action, cerr)
		writeJSON(w, statusForKind(cerr.Kind), stageError{Error: cerr.UserMessage()})
		return
	}

	writeJSON(w, http.StatusOK, stageResponse{
		Action:    req.Action,
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// stageResult unwraps an Outcome for the wire: the typed value when
// parsing succeeded, the raw-response fallback when it did not.
func stageResult[T any](out *stage.Outcome[T]) any {
	if out == nil {
		return nil
	}
	if out.Fallback {
		return map[string]string{"rawResponse": out.Raw}
	}
	return out.Value
}

func statusForKind(kind classify.Kind) int {
	switch kind {
	case classify.KindRateLimited:
		return http.StatusTooManyRequests
	case classify.KindQuotaExhausted:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
