package metrics

import (
	"time"

	"madad/internal/core"
)

// OperationsResult pairs the metric group with the record names behind
// each count, for breakdown rendering.
type OperationsResult struct {
	Metrics         OperationsMetrics
	ActiveNames     []string
	CancelledNames  []string
	ReferralNames   []string
	ReturningPhones []string
}

// ComputeOperations aggregates the operational counters for the month.
// Active customers are judged against computedAt, not the month range:
// an event still in an open status with a future date counts regardless
// of which month it lands in.
func ComputeOperations(leads []NormalizedLead, events []NormalizedEvent, rng core.MonthRange, vocab Vocabulary, computedAt time.Time) OperationsResult {
	nowMs := computedAt.UnixMilli()
	var res OperationsResult
	var active, cancelled, referrals, returning int64

	for _, ev := range events {
		if vocab.isActiveStatus(ev.Status) && ev.EventDateMs > nowMs {
			active++
			res.ActiveNames = append(res.ActiveNames, taskLabel(ev))
		}
		if sameText(ev.Status, vocab.StatusCancelled) && rng.Contains(ev.UpdatedMs) {
			cancelled++
			res.CancelledNames = append(res.CancelledNames, taskLabel(ev))
		}
	}

	// Historical closed-won phones: any closed-won lead whose close
	// predates this month, keyed by normalized phone.
	historical := make(map[string]struct{})
	for _, lead := range leads {
		if lead.Phone == "" {
			continue
		}
		if sameText(lead.Status, vocab.StatusClosedWon) && lead.ClosedMs < rng.StartMs {
			historical[lead.Phone] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	for _, lead := range leads {
		if !rng.Contains(lead.CreatedMs) {
			continue
		}
		if sameText(lead.Source, vocab.SourceWordOfMouth) {
			referrals++
			res.ReferralNames = append(res.ReferralNames, leadLabel(lead))
		}
		if lead.Phone == "" {
			continue
		}
		if _, dup := seen[lead.Phone]; dup {
			continue
		}
		seen[lead.Phone] = struct{}{}
		if _, ok := historical[lead.Phone]; ok {
			returning++
			res.ReturningPhones = append(res.ReturningPhones, lead.Phone)
		}
	}

	res.Metrics = OperationsMetrics{
		ActiveCustomers:      countOf(active, SourceClickUp),
		Cancellations:        countOf(cancelled, SourceClickUp),
		ReferralsWordOfMouth: countOf(referrals, SourceClickUp),
		ReturningCustomers:   countOf(returning, SourceComputed),
	}
	return res
}
