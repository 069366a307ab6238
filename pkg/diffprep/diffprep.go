// Package diffprep pairs a fix plan's proposed changes with the files'
// current content so a caller can present reviewable diffs. Fetches fan
// out concurrently with a bound; a single failed fetch degrades that one
// entry instead of aborting the rest.
package diffprep

import (
	"context"

	"github.com/resurrect-systems/resurrect/pkg/sources"
	"github.com/resurrect-systems/resurrect/pkg/stage"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchLimit bounds how many file fetches run at once.
const DefaultFetchLimit = 4

// FileChange pairs a proposed change with the file's pre-change content.
// OriginalContent is empty when the file is new or the fetch failed.
type FileChange struct {
	Path            string             `json:"path"`
	OriginalContent string             `json:"originalContent"`
	NewContent      string             `json:"newContent"`
	Action          stage.ChangeAction `json:"action"`
}

// Preparer fetches original file content for proposed changes.
type Preparer struct {
	files sources.FileSource
	limit int
}

// New creates a Preparer. A limit below one falls back to
// DefaultFetchLimit.
func New(files sources.FileSource, limit int) *Preparer {
	if limit < 1 {
		limit = DefaultFetchLimit
	}
	return &Preparer{files: files, limit: limit}
}

// Prepare returns one FileChange per proposed change, in input order.
// The output length always equals the input length: a failed fetch sets
// OriginalContent to "" and the remaining fetches continue.
func (p *Preparer) Prepare(ctx context.Context, owner, repo, branch string, changes []stage.ProposedChange) []FileChange {
	prepared := make([]FileChange, len(changes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, change := range changes {
		prepared[i] = FileChange{
			Path:       change.File,
			NewContent: change.Content,
			Action:     change.Action,
		}

		// A created file has no prior content to fetch.
		if change.Action == stage.ActionCreate {
			continue
		}

		g.Go(func() error {
			content, err := p.files.FileContent(ctx, sources.FileRef{
				Owner:  owner,
				Repo:   repo,
				Path:   change.File,
				Branch: branch,
			})
			if err == nil {
				prepared[i].OriginalContent = content
			}
			return nil
		})
	}

	// Fetch errors are absorbed per entry, so Wait never returns one.
	_ = g.Wait()
	return prepared
}
