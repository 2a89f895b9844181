package metrics

import "madad/internal/core"

// ComputeMarketing aggregates lead-funnel counts for the month.
// Landing signups are defined equal to landing visits in v1: the task
// list is the sole source of truth, so every recorded visit is a signup
// and the conversion rate is a definitional identity.
func ComputeMarketing(leads []NormalizedLead, rng core.MonthRange, vocab Vocabulary) MarketingMetrics {
	var total, relevant, landing int64

	for _, lead := range leads {
		if !rng.Contains(lead.CreatedMs) {
			continue
		}
		total++

		notRelevant := sameText(lead.Status, vocab.StatusClosedLost) &&
			sameText(lead.LossReason, vocab.LossReasonNotRelevant)
		if !notRelevant {
			relevant++
		}

		if sameText(lead.Source, vocab.SourceLandingPage) {
			landing++
		}
	}

	m := MarketingMetrics{
		TotalLeads:     countOf(total, SourceClickUp),
		RelevantLeads:  countOf(relevant, SourceComputed),
		LandingVisits:  countOf(landing, SourceClickUp),
		LandingSignups: countOf(landing, SourceClickUp),
	}
	m.LandingSignups.Meta.addNote("signups defined equal to visits in v1")

	if landing == 0 {
		m.LandingConversionPct = nullPercent(SourceComputed, "no landing page visits")
	} else {
		m.LandingConversionPct = percentOf(100, SourceComputed)
	}
	return m
}
