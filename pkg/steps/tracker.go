// Package steps maintains the client-facing mirror of pipeline progress.
// The tracker is a pure read model: it holds no business logic and is
// mutated only by orchestrator step events, applied as a reducer over
// the closed set of stage transitions.
package steps

import (
	"sync"

	"github.com/resurrect-systems/resurrect/pkg/agent"
)

// Snapshot is the tracker state exposed to a caller or UI.
type Snapshot struct {
	IsRunning   bool              `json:"isRunning"`
	Steps       []agent.AgentStep `json:"steps"`
	CurrentStep *agent.StageID    `json:"currentStep"`
}

// Tracker mirrors one caller session's pipeline progress. It belongs to
// exactly one session; concurrent runs each get their own tracker.
type Tracker struct {
	mu      sync.Mutex
	runID   string
	running bool
	steps   []agent.AgentStep
	current *agent.StageID
}

// NewTracker creates a tracker with all steps pending.
func NewTracker() *Tracker {
	return &Tracker{steps: agent.PendingSteps()}
}

// Apply folds one orchestrator event into the tracker state.
//
// The first event of a new run resets every step to pending. Events for
// any run other than the current one are discarded; this is how late
// results from an abandoned run are kept from mutating a newer
// session's state.
func (t *Tracker) Apply(ev agent.StepEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.RunID != t.runID {
		// Only the opening transition of a fresh run may take over.
		if ev.Stage != agent.StageAnalyze || ev.Status == agent.StatusPending {
			return
		}
		t.runID = ev.RunID
		t.steps = agent.PendingSteps()
		t.running = true
	}

	for i := range t.steps {
		if t.steps[i].ID != ev.Stage {
			continue
		}
		t.steps[i].Status = ev.Status
		t.steps[i].Error = ev.Err
		if ev.Result != nil {
			t.steps[i].Result = ev.Result
		}
		if ev.Status == agent.StatusCompleted || ev.Status == agent.StatusError {
			at := ev.At
			t.steps[i].Timestamp = &at
		}
		break
	}

	if ev.Terminal() {
		t.running = false
		t.current = nil
		return
	}

	stage := ev.Stage
	t.current = &stage
}

// Snapshot returns a copy of the tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	steps := make([]agent.AgentStep, len(t.steps))
	copy(steps, t.steps)

	var current *agent.StageID
	if t.current != nil {
		c := *t.current
		current = &c
	}

	return Snapshot{
		IsRunning:   t.running,
		Steps:       steps,
		CurrentStep: current,
	}
}
