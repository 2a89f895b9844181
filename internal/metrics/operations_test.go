package metrics

import (
	"testing"
	"time"
)

func TestComputeOperations(t *testing.T) {
	rng := mustMonth(t, "2025-06")
	vocab := DefaultVocabulary()
	inMonth := rng.StartMs + 1000
	computedAt := time.UnixMilli(rng.StartMs + 15*24*3600*1000).UTC() // mid-month

	t.Run("active customers judged against computedAt", func(t *testing.T) {
		events := []NormalizedEvent{
			{ID: "e1", Name: "Future gig", Status: "booked", EventDateMs: computedAt.UnixMilli() + 1000},
			{ID: "e2", Name: "Past gig", Status: "booked", EventDateMs: computedAt.UnixMilli() - 1000},
			{ID: "e3", Name: "Done gig", Status: "done", EventDateMs: computedAt.UnixMilli() + 1000},
			{ID: "e4", Name: "Next year", Status: "staffing", EventDateMs: rng.EndExclusiveMs + 1000},
		}
		res := ComputeOperations(nil, events, rng, vocab, computedAt)
		if *res.Metrics.ActiveCustomers.Value != 2 {
			t.Fatalf("expected 2 active customers, got %d", *res.Metrics.ActiveCustomers.Value)
		}
		if len(res.ActiveNames) != 2 || res.ActiveNames[1] != "Next year" {
			t.Fatalf("expected future-dated open events, got %v", res.ActiveNames)
		}
	})

	t.Run("cancellations by update in month", func(t *testing.T) {
		events := []NormalizedEvent{
			{ID: "e1", Name: "A", Status: "Cancelled", UpdatedMs: inMonth},
			{ID: "e2", Name: "B", Status: "Cancelled", UpdatedMs: rng.StartMs - 1},
			{ID: "e3", Name: "C", Status: "booked", UpdatedMs: inMonth},
		}
		res := ComputeOperations(nil, events, rng, vocab, computedAt)
		if *res.Metrics.Cancellations.Value != 1 {
			t.Fatalf("expected 1 cancellation, got %d", *res.Metrics.Cancellations.Value)
		}
	})

	t.Run("referrals created in month", func(t *testing.T) {
		leads := []NormalizedLead{
			{ID: "l1", Name: "A", CreatedMs: inMonth, Source: "Word of Mouth"},
			{ID: "l2", Name: "B", CreatedMs: inMonth, Source: "Landing Page"},
			{ID: "l3", Name: "C", CreatedMs: rng.StartMs - 1, Source: "Word of Mouth"},
		}
		res := ComputeOperations(leads, nil, rng, vocab, computedAt)
		if *res.Metrics.ReferralsWordOfMouth.Value != 1 {
			t.Fatalf("expected 1 referral, got %d", *res.Metrics.ReferralsWordOfMouth.Value)
		}
	})

	t.Run("returning customers match historical phones", func(t *testing.T) {
		leads := []NormalizedLead{
			// Historical closed-won, before this month.
			{ID: "h1", Status: "Closed Won", ClosedMs: rng.StartMs - 5000, Phone: "0501234567"},
			// Same phone back this month, typed differently upstream but
			// already normalized at ingestion.
			{ID: "l1", CreatedMs: inMonth, Phone: "0501234567"},
			{ID: "l2", CreatedMs: inMonth, Phone: "0501234567"}, // duplicate, counted once
			{ID: "l3", CreatedMs: inMonth, Phone: "0509999999"}, // new customer
			{ID: "l4", CreatedMs: inMonth},                      // no phone
		}
		res := ComputeOperations(leads, nil, rng, vocab, computedAt)
		if *res.Metrics.ReturningCustomers.Value != 1 {
			t.Fatalf("expected 1 returning customer, got %d", *res.Metrics.ReturningCustomers.Value)
		}
		if len(res.ReturningPhones) != 1 || res.ReturningPhones[0] != "0501234567" {
			t.Fatalf("expected [0501234567], got %v", res.ReturningPhones)
		}
	})

	t.Run("closed won this month is not historical", func(t *testing.T) {
		leads := []NormalizedLead{
			{ID: "h1", Status: "Closed Won", ClosedMs: inMonth, Phone: "0501234567"},
			{ID: "l1", CreatedMs: inMonth, Phone: "0501234567"},
		}
		res := ComputeOperations(leads, nil, rng, vocab, computedAt)
		if *res.Metrics.ReturningCustomers.Value != 0 {
			t.Fatalf("expected 0 returning, got %d", *res.Metrics.ReturningCustomers.Value)
		}
	})
}
