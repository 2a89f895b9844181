package metrics

import (
	"context"
	"fmt"

	"madad/internal/clickup"
	"madad/internal/core"
)

// moneyResult is one money figure plus its per-task contributions for
// breakdown rendering. Amount has already passed through EnsureNetGross.
type moneyResult struct {
	amount core.Amount
	items  []LineItem
}

// financial computes the money figures over the event-calendar
// collection, funnelling all comment I/O through the run's shared cache.
type financial struct {
	rng   core.MonthRange
	vocab Vocabulary
	ex    *Extractor
	cache *CommentCache
}

func newFinancial(rng core.MonthRange, vocab Vocabulary, cache *CommentCache) *financial {
	return &financial{rng: rng, vocab: vocab, ex: NewExtractor(vocab), cache: cache}
}

// needsCommentLookup gates the per-task comment fetch: only tasks that
// carry a deposit or were touched in-month can contribute a
// comment-derived signal for this month.
func (f *financial) needsCommentLookup(ev NormalizedEvent) bool {
	return ev.DepositGrossILS != 0 || f.rng.Contains(ev.UpdatedMs)
}

// doneTimestampMs resolves when an event was completed: the first
// Done-status transition from the comments when available, else the
// explicit close timestamp, else the update timestamp but only when the
// current status already denotes completion.
func (f *financial) doneTimestampMs(ev NormalizedEvent, comments commentLookup) int64 {
	if comments.outcome == LookupOK {
		if ms, ok := f.ex.FirstDoneMs(comments.comments); ok {
			return ms
		}
	}
	if ev.ClosedMs > 0 {
		return ev.ClosedMs
	}
	if f.vocab.isCompletionStatus(ev.Status) {
		return ev.UpdatedMs
	}
	return 0
}

type commentLookup struct {
	comments []clickup.Comment
	outcome  LookupOutcome
}

// MonthlyRevenue reconciles recognized revenue for the month: balances
// released by completion plus deposits confirmed in-month. A task can
// contribute both a deposit and a balance without double-booking either,
// because the two signals are accumulated into one running amount.
func (f *financial) MonthlyRevenue(ctx context.Context, events []NormalizedEvent) moneyResult {
	budget := NewLookupBudget("monthly revenue", MonthlyRevenueLookupBudget)
	var (
		total float64
		items []LineItem
		notes []string
	)

	for _, ev := range events {
		if sameText(ev.Status, f.vocab.StatusCancelled) {
			continue
		}

		lookup := commentLookup{outcome: LookupSkipped}
		if f.needsCommentLookup(ev) {
			comments, outcome := f.cache.Lookup(ctx, ev.ID, budget)
			lookup = commentLookup{comments: comments, outcome: outcome}
			if outcome == LookupFailed {
				notes = append(notes, fmt.Sprintf("comments unavailable for %s; comment-derived signals skipped", taskLabel(ev)))
			}
		}

		var taskGross float64
		var itemNote string

		if doneMs := f.doneTimestampMs(ev, lookup); doneMs != 0 && f.rng.Contains(doneMs) {
			if ev.HasBalanceDue {
				taskGross += ev.BalanceDueGrossILS
			} else {
				itemNote = "balance due missing; counted 0"
			}
		}

		if lookup.outcome == LookupOK {
			if depositMs, ok := f.ex.DepositPaidMs(lookup.comments); ok && f.rng.Contains(depositMs) {
				taskGross += ev.DepositGrossILS
			}
		}

		if taskGross != 0 || itemNote != "" {
			items = append(items, LineItem{
				Name:         taskLabel(ev),
				AmountAgorot: core.Agorot(taskGross),
				Note:         itemNote,
			})
		}
		total += taskGross
	}

	if n := budget.ExhaustedNote(); n != "" {
		notes = append(notes, n)
	}
	return moneyResult{
		amount: core.EnsureNetGross(core.Amount{GrossILS: &total, Notes: notes}),
		items:  items,
	}
}

// ExpectedCashflow sums three additive components per task, mutually
// exclusive by construction: (A) deposits confirmed this month, (B)
// balances for events dated this month that are not in Billing and did
// not fire a Billing-to-Done transition this month, and (C) balances
// released by a Billing-to-Done transition observed this month. B
// excludes exactly what C requires, so a balance is never counted twice.
func (f *financial) ExpectedCashflow(ctx context.Context, events []NormalizedEvent) moneyResult {
	budget := NewLookupBudget("expected cashflow", ExpectedCashflowLookupBudget)
	var (
		total float64
		items []LineItem
		notes []string
	)

	for _, ev := range events {
		if sameText(ev.Status, f.vocab.StatusCancelled) {
			continue
		}

		lookup := commentLookup{outcome: LookupSkipped}
		if f.needsCommentLookup(ev) {
			comments, outcome := f.cache.Lookup(ctx, ev.ID, budget)
			lookup = commentLookup{comments: comments, outcome: outcome}
			if outcome == LookupFailed {
				notes = append(notes, fmt.Sprintf("comments unavailable for %s; comment-derived signals skipped", taskLabel(ev)))
			}
		}

		billingDoneInMonth := false
		if lookup.outcome == LookupOK {
			if ms, ok := f.ex.FirstBillingToDoneMs(lookup.comments); ok {
				billingDoneInMonth = f.rng.Contains(ms)
			}
		}

		var taskGross float64
		var itemNote string

		// A: deposit confirmed this month.
		if lookup.outcome == LookupOK {
			if depositMs, ok := f.ex.DepositPaidMs(lookup.comments); ok && f.rng.Contains(depositMs) {
				taskGross += ev.DepositGrossILS
			}
		}

		// B: balance due for an event dated this month, unless the task
		// sits in Billing or already released the balance via C.
		if f.rng.Contains(ev.EventDateMs) &&
			!sameText(ev.Status, f.vocab.StatusBilling) &&
			!billingDoneInMonth {
			if ev.HasBalanceDue {
				taskGross += ev.BalanceDueGrossILS
			} else {
				itemNote = "balance due missing; counted 0"
			}
		}

		// C: balance released by a Billing-to-Done transition this month.
		if billingDoneInMonth {
			if ev.HasBalanceDue {
				taskGross += ev.BalanceDueGrossILS
			} else {
				itemNote = "balance due missing; counted 0"
			}
		}

		if taskGross != 0 || itemNote != "" {
			items = append(items, LineItem{
				Name:         taskLabel(ev),
				AmountAgorot: core.Agorot(taskGross),
				Note:         itemNote,
			})
		}
		total += taskGross
	}

	if n := budget.ExhaustedNote(); n != "" {
		notes = append(notes, n)
	}
	return moneyResult{
		amount: core.EnsureNetGross(core.Amount{GrossILS: &total, Notes: notes}),
		items:  items,
	}
}

// ExpectedExpenses sums the expense collection for expense dates falling
// in-month. No comment lookups are involved.
func (f *financial) ExpectedExpenses(expenses []NormalizedExpense) moneyResult {
	var (
		total float64
		items []LineItem
	)
	for _, ex := range expenses {
		if !f.rng.Contains(ex.ExpenseDateMs) {
			continue
		}
		if !ex.HasAmount {
			items = append(items, LineItem{Name: expenseLabel(ex), Note: "amount missing; counted 0"})
			continue
		}
		total += ex.GrossILS
		items = append(items, LineItem{Name: expenseLabel(ex), AmountAgorot: core.Agorot(ex.GrossILS)})
	}
	return moneyResult{
		amount: core.EnsureNetGross(core.Amount{GrossILS: &total}),
		items:  items,
	}
}

// LeadRevenueFallback recognizes revenue from closed-won leads when the
// event calendar carries no deal data: lead budgets summed by
// close-date-in-month, close falling back to update with a note.
func (f *financial) LeadRevenueFallback(leads []NormalizedLead) moneyResult {
	var (
		total   float64
		items   []LineItem
		derived bool
	)
	for _, lead := range leads {
		if !sameText(lead.Status, f.vocab.StatusClosedWon) {
			continue
		}
		if !f.rng.Contains(lead.ClosedMs) {
			continue
		}
		if lead.ClosedMsDerived {
			derived = true
		}
		total += lead.BudgetGrossILS
		items = append(items, LineItem{Name: leadLabel(lead), AmountAgorot: core.Agorot(lead.BudgetGrossILS)})
	}

	notes := []string{"revenue derived from closed-won leads; no event-calendar deal data"}
	if derived {
		notes = append(notes, "close timestamp missing on some leads; update timestamp used")
	}
	return moneyResult{
		amount: core.EnsureNetGross(core.Amount{GrossILS: &total, Notes: notes}),
		items:  items,
	}
}

func taskLabel(ev NormalizedEvent) string {
	if ev.Name != "" {
		return ev.Name
	}
	return ev.ID
}

func leadLabel(lead NormalizedLead) string {
	if lead.Name != "" {
		return lead.Name
	}
	return lead.ID
}

func expenseLabel(ex NormalizedExpense) string {
	if ex.Name != "" {
		return ex.Name
	}
	return ex.ID
}
