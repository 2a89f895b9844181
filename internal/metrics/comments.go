package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"madad/internal/clickup"
)

// Fixed per-pass comment lookup ceilings. Once a pass exhausts its
// budget the remaining lookups are skipped with a note instead of
// blocking the whole computation.
const (
	MonthlyRevenueLookupBudget   = 200
	ExpectedCashflowLookupBudget = 250
	ClosedWonLookupBudget        = 100
)

// LookupOutcome classifies one comment lookup.
type LookupOutcome int

const (
	// LookupOK means comments are available (cache hit or fresh fetch).
	LookupOK LookupOutcome = iota
	// LookupSkipped means the pass budget was exhausted before fetching.
	LookupSkipped
	// LookupFailed means the fetch errored; the task's contribution is
	// recorded as a note, never propagated.
	LookupFailed
)

// LookupBudget caps how much comment I/O a single aggregation pass may
// issue. Cache hits are free; only real fetches consume budget.
type LookupBudget struct {
	Name      string
	Limit     int
	used      int
	exhausted bool
}

func NewLookupBudget(name string, limit int) *LookupBudget {
	return &LookupBudget{Name: name, Limit: limit}
}

// ExhaustedNote returns a provenance note once the budget ran out,
// or "" if it never did.
func (b *LookupBudget) ExhaustedNote() string {
	if !b.exhausted {
		return ""
	}
	return fmt.Sprintf("comment lookup budget exhausted (%d) during %s; remaining checks skipped", b.Limit, b.Name)
}

// CommentCache memoizes per-task comment fetches for one computation
// run, so a task is fetched at most once no matter how many aggregators
// ask for it. Lookups are issued sequentially within each pass; the
// cache is never written from more than one goroutine.
type CommentCache struct {
	source clickup.TaskSource
	cache  map[string][]clickup.Comment
}

func NewCommentCache(source clickup.TaskSource) *CommentCache {
	return &CommentCache{
		source: source,
		cache:  make(map[string][]clickup.Comment),
	}
}

// Lookup returns the task's comments, fetching through the budget when
// not yet cached. Failed fetches are not cached, so a later pass with
// budget left may retry the task.
func (c *CommentCache) Lookup(ctx context.Context, taskID string, budget *LookupBudget) ([]clickup.Comment, LookupOutcome) {
	if comments, ok := c.cache[taskID]; ok {
		return comments, LookupOK
	}

	if budget.used >= budget.Limit {
		budget.exhausted = true
		return nil, LookupSkipped
	}
	budget.used++

	comments, err := c.source.GetTaskComments(ctx, taskID)
	if err != nil {
		slog.WarnContext(ctx, "Comment fetch failed",
			"task_id", taskID,
			"pass", budget.Name,
			"error", err)
		return nil, LookupFailed
	}

	c.cache[taskID] = comments
	return comments, LookupOK
}

// Size returns how many tasks have cached comments.
func (c *CommentCache) Size() int { return len(c.cache) }
