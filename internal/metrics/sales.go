package metrics

import "madad/internal/core"

// ClosedWonEvent is a deal that automation already moved out of the
// leads list into the event calendar before this computation read the
// leads, supplied externally so a late read does not miss the closure.
type ClosedWonEvent struct {
	TaskID         string
	Name           string
	MovedMs        int64
	BudgetGrossILS float64
	HasBudget      bool
}

// SalesInputs carries the cross-aggregator dependencies of the sales
// group: the financial pass's recognized revenue and the closed-won
// events extracted once per run.
type SalesInputs struct {
	Leads           []NormalizedLead
	ClosedWonEvents []ClosedWonEvent
	MonthlyRevenue  core.Amount
}

// ComputeSales aggregates the sales funnel for the month.
func ComputeSales(in SalesInputs, rng core.MonthRange, vocab Vocabulary) (SalesMetrics, []string) {
	var calls, closures int64
	var closureNames []string

	for _, lead := range in.Leads {
		if rng.Contains(lead.CreatedMs) && !sameText(lead.Status, vocab.StatusNewLead) {
			calls++
		}
		if sameText(lead.Status, vocab.StatusClosedWon) && rng.Contains(lead.ClosedMs) {
			closures++
			closureNames = append(closureNames, leadLabel(lead))
		}
	}

	var wonBudgets []float64
	for _, ev := range in.ClosedWonEvents {
		if !rng.Contains(ev.MovedMs) {
			continue
		}
		closures++
		closureNames = append(closureNames, ev.Name)
		if ev.HasBudget {
			wonBudgets = append(wonBudgets, ev.BudgetGrossILS)
		}
	}

	m := SalesMetrics{
		SalesCalls: countOf(calls, SourceClickUp),
		Closures:   countOf(closures, SourceComputed),
	}

	// Deal size prefers actual closed-won budgets; the revenue/closures
	// ratio is only a proxy when no budget data exists.
	switch {
	case len(wonBudgets) > 0:
		var sum float64
		for _, b := range wonBudgets {
			sum += b
		}
		avg := sum / float64(len(wonBudgets))
		m.AvgRevenuePerDeal = currencyOf(core.EnsureNetGross(core.GrossAmount(avg)), SourceComputed)
	case closures > 0 && in.MonthlyRevenue.GrossILS != nil:
		avg := *in.MonthlyRevenue.GrossILS / float64(closures)
		a := core.EnsureNetGross(core.GrossAmount(avg))
		a.Notes = append(a.Notes, "derived from monthly revenue over closure count")
		m.AvgRevenuePerDeal = currencyOf(a, SourceComputed)
	default:
		m.AvgRevenuePerDeal = CurrencyMetric{Meta: Meta{Source: SourceComputed, Notes: []string{"no closures"}}}
	}

	if calls == 0 {
		m.CloseRatePct = nullPercent(SourceComputed, "no sales calls")
	} else {
		m.CloseRatePct = percentOf(core.Round2(float64(closures)/float64(calls)*100), SourceComputed)
	}
	return m, closureNames
}
