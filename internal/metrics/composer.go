package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"madad/internal/clickup"
	"madad/internal/core"
	"madad/internal/insights"
)

// ComposerConfig identifies the three task collections and the
// vocabulary the aggregators run with.
type ComposerConfig struct {
	LeadsListID    string
	EventsListID   string
	ExpensesListID string
	Fields         FieldMap
	Vocab          Vocabulary
}

// Composer orchestrates one month's computation: fetch the three
// collections concurrently, normalize, aggregate the four KPI groups
// and assemble the versioned document plus optional breakdowns.
type Composer struct {
	tasks    clickup.TaskSource
	insights insights.InsightsSource
	cfg      ComposerConfig
}

// NewComposer builds a composer. insightsSource may be nil; the follower
// metric then degrades to null with a note.
func NewComposer(tasks clickup.TaskSource, insightsSource insights.InsightsSource, cfg ComposerConfig) *Composer {
	return &Composer{tasks: tasks, insights: insightsSource, cfg: cfg}
}

// ComputeOptions tunes a single computation.
type ComputeOptions struct {
	// ComputedAt anchors "now"-relative metrics; zero means time.Now().
	ComputedAt time.Time
	// WithBreakdowns also assembles the per-metric side documents.
	WithBreakdowns bool
}

// DashboardResult is one month's metrics document and, when requested,
// the breakdown documents keyed by metric name.
type DashboardResult struct {
	Metrics    DashboardMetrics
	Breakdowns map[string]BreakdownDoc
}

// Compute produces the metrics document for exactly one month. A
// syntactically valid month always yields a document; partial data shows
// as nulls with notes, never as silently wrong zeros.
func (c *Composer) Compute(ctx context.Context, month string, opts ComputeOptions) (*DashboardResult, error) {
	rng, err := core.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	computedAt := opts.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	rawLeads, rawEvents, rawExpenses, err := c.fetchCollections(ctx)
	if err != nil {
		return nil, err
	}

	leads := make([]NormalizedLead, 0, len(rawLeads))
	for _, t := range rawLeads {
		leads = append(leads, NormalizeLead(t, c.cfg.Fields))
	}
	events := make([]NormalizedEvent, 0, len(rawEvents))
	for _, t := range rawEvents {
		events = append(events, NormalizeEvent(t, c.cfg.Fields))
	}
	expenses := make([]NormalizedExpense, 0, len(rawExpenses))
	for _, t := range rawExpenses {
		expenses = append(expenses, NormalizeExpense(t, c.cfg.Fields))
	}

	// One memoizing cache per run; every aggregator pass funnels its
	// comment I/O through it under its own budget.
	cache := NewCommentCache(c.tasks)
	fin := newFinancial(rng, c.cfg.Vocab, cache)

	closedWon := c.extractClosedWonEvents(ctx, events, rng, cache)

	var revenue moneyResult
	if len(events) == 0 {
		revenue = fin.LeadRevenueFallback(leads)
	} else {
		revenue = fin.MonthlyRevenue(ctx, events)
	}
	cashflow := fin.ExpectedCashflow(ctx, events)
	expenseFigure := fin.ExpectedExpenses(expenses)

	marketing := ComputeMarketing(leads, rng, c.cfg.Vocab)
	marketing.InstagramFollowers = c.followerMetric(ctx, rng, computedAt)

	sales, closureNames := ComputeSales(SalesInputs{
		Leads:           leads,
		ClosedWonEvents: closedWon,
		MonthlyRevenue:  revenue.amount,
	}, rng, c.cfg.Vocab)

	ops := ComputeOperations(leads, events, rng, c.cfg.Vocab, computedAt)

	doc := DashboardMetrics{
		Version: DocumentVersion,
		Month:   month,
		Financial: FinancialMetrics{
			MonthlyRevenue:   currencyOf(revenue.amount, SourceComputed),
			ExpectedCashflow: currencyOf(cashflow.amount, SourceComputed),
			ExpectedExpenses: currencyOf(expenseFigure.amount, SourceClickUp),
		},
		Marketing:  marketing,
		Sales:      sales,
		Operations: ops.Metrics,
	}

	result := &DashboardResult{Metrics: doc}
	if opts.WithBreakdowns {
		result.Breakdowns = map[string]BreakdownDoc{
			"monthlyRevenue":       lineItemsBreakdown(revenue.items),
			"expectedCashflow":     lineItemsBreakdown(cashflow.items),
			"expectedExpenses":     lineItemsBreakdown(expenseFigure.items),
			"closures":             namesBreakdown(closureNames),
			"activeCustomers":      namesBreakdown(ops.ActiveNames),
			"cancellations":        namesBreakdown(ops.CancelledNames),
			"referralsWordOfMouth": namesBreakdown(ops.ReferralNames),
			"returningCustomers":   namesBreakdown(ops.ReturningPhones),
		}
	}

	slog.InfoContext(ctx, "Dashboard computed",
		"month", month,
		"leads", len(leads),
		"events", len(events),
		"expenses", len(expenses),
		"comment_fetches", cache.Size())
	return result, nil
}

// fetchCollections pulls the three task lists concurrently.
func (c *Composer) fetchCollections(ctx context.Context) (leads, events, expenses []clickup.Task, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		leads, e = c.tasks.ListTasks(gctx, clickup.ListTasksParams{ListID: c.cfg.LeadsListID, IncludeClosed: true})
		if e != nil {
			return fmt.Errorf("fetch leads: %w", e)
		}
		return nil
	})
	g.Go(func() error {
		var e error
		events, e = c.tasks.ListTasks(gctx, clickup.ListTasksParams{ListID: c.cfg.EventsListID, IncludeClosed: true})
		if e != nil {
			return fmt.Errorf("fetch events: %w", e)
		}
		return nil
	})
	g.Go(func() error {
		var e error
		expenses, e = c.tasks.ListTasks(gctx, clickup.ListTasksParams{ListID: c.cfg.ExpensesListID, IncludeClosed: true})
		if e != nil {
			return fmt.Errorf("fetch expenses: %w", e)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return leads, events, expenses, nil
}

// extractClosedWonEvents scans the event calendar once for automation
// closed-won moves, so the sales aggregator never re-fetches comments
// that financial passes already have in cache.
func (c *Composer) extractClosedWonEvents(ctx context.Context, events []NormalizedEvent, rng core.MonthRange, cache *CommentCache) []ClosedWonEvent {
	budget := NewLookupBudget("closed-won extraction", ClosedWonLookupBudget)
	ex := NewExtractor(c.cfg.Vocab)

	var out []ClosedWonEvent
	for _, ev := range events {
		if ev.CreatedMs >= rng.EndExclusiveMs {
			continue
		}
		comments, outcome := cache.Lookup(ctx, ev.ID, budget)
		if outcome != LookupOK {
			continue
		}
		if ms, ok := ex.ClosedWonMoveMs(comments); ok {
			out = append(out, ClosedWonEvent{
				TaskID:         ev.ID,
				Name:           taskLabel(ev),
				MovedMs:        ms,
				BudgetGrossILS: ev.BudgetGrossILS,
				HasBudget:      ev.HasBudget,
			})
		}
	}
	return out
}

// followerMetric fetches the follower count for the month. The insights
// API only serves the current and previous calendar month; outside that
// window, or on any failure, the metric is null with a note.
func (c *Composer) followerMetric(ctx context.Context, rng core.MonthRange, computedAt time.Time) CountMetric {
	if c.insights == nil {
		return nullCount(SourceInstagram, "no insights source configured")
	}

	current := core.MonthOf(computedAt)
	previous, _ := core.AddMonths(current, -1)
	if rng.Month != current && rng.Month != previous {
		return nullCount(SourceInstagram, "follower data only available for current and previous month")
	}

	points, err := c.insights.GetFollowerCountSeries(ctx, insights.SeriesParams{
		SinceMs: rng.StartMs,
		UntilMs: rng.EndExclusiveMs,
	})
	if err != nil {
		slog.WarnContext(ctx, "Follower series fetch failed", "month", rng.Month, "error", err)
		return nullCount(SourceInstagram, "follower data unavailable")
	}
	if len(points) == 0 {
		return nullCount(SourceInstagram, "no follower data points in month")
	}
	return countOf(points[len(points)-1].Value, SourceInstagram)
}
