package diffprep

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/resurrect-systems/resurrect/pkg/sources"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

func TestPrepareOutputMatchesInput(t *testing.T) {
	files := sources.NewMemoryFileSource(map[string]string{
		"a.ts": "const a = 1\n",
		"c.ts": "const c = 3\n",
	})
	files.FailPaths["b.ts"] = true

	changes := []stage.ProposedChange{
		{File: "a.ts", Action: stage.ActionModify, Content: "const a = 2\n"},
		{File: "b.ts", Action: stage.ActionModify, Content: "const b = 2\n"},
		{File: "c.ts", Action: stage.ActionModify, Content: "const c = 4\n"},
	}

	got := New(files, 2).Prepare(context.Background(), "octo", "shop", "main", changes)
	if len(got) != len(changes) {
		t.Fatalf("len = %d, want %d", len(got), len(changes))
	}

	// Input order is preserved even though fetches fan out.
	for i, change := range changes {
		if got[i].Path != change.File {
			t.Fatalf("got[%d].Path = %q, want %q", i, got[i].Path, change.File)
		}
		if got[i].NewContent != change.Content {
			t.Fatalf("got[%d].NewContent = %q", i, got[i].NewContent)
		}
	}

	if got[0].OriginalContent != "const a = 1\n" {
		t.Fatalf("got[0].OriginalContent = %q", got[0].OriginalContent)
	}
	if got[1].OriginalContent != "" {
		t.Fatalf("failed fetch should degrade to empty content, got %q", got[1].OriginalContent)
	}
	if got[2].OriginalContent != "const c = 3\n" {
		t.Fatalf("got[2].OriginalContent = %q", got[2].OriginalContent)
	}
}

func TestPrepareSkipsFetchForCreatedFiles(t *testing.T) {
	fetches := &countingFileSource{}

	changes := []stage.ProposedChange{
		{File: "new.ts", Action: stage.ActionCreate, Content: "export {}\n"},
		{File: "old.ts", Action: stage.ActionModify, Content: "changed\n"},
	}

	got := New(fetches, 0).Prepare(context.Background(), "octo", "shop", "main", changes)
	if got[0].OriginalContent != "" {
		t.Fatalf("created file should have no original content")
	}
	if n := fetches.calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
}

func TestPrepareEmptyChanges(t *testing.T) {
	got := New(sources.NewMemoryFileSource(nil), 0).Prepare(context.Background(), "o", "r", "b", nil)
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestPrepareBoundsConcurrency(t *testing.T) {
	const limit = 2
	gate := &concurrencyGate{limit: limit}

	changes := make([]stage.ProposedChange, 10)
	for i := range changes {
		changes[i] = stage.ProposedChange{File: "f.ts", Action: stage.ActionModify}
	}

	New(gate, limit).Prepare(context.Background(), "o", "r", "b", changes)
	if gate.exceeded.Load() {
		t.Fatalf("more than %d fetches ran concurrently", limit)
	}
}

type countingFileSource struct {
	calls atomic.Int64
}

func (s *countingFileSource) FileContent(context.Context, sources.FileRef) (string, error) {
	s.calls.Add(1)
	return "original\n", nil
}

type concurrencyGate struct {
	mu       sync.Mutex
	limit    int
	inflight int
	exceeded atomic.Bool
}

func (g *concurrencyGate) FileContent(context.Context, sources.FileRef) (string, error) {
	g.mu.Lock()
	g.inflight++
	if g.inflight > g.limit {
		g.exceeded.Store(true)
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}()
	return "", nil
}
