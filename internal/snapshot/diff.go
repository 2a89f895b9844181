// Package snapshot builds the chronological chain of monthly metric
// snapshots, each carrying a month-over-month percentage diff against
// its predecessor.
package snapshot

import (
	"madad/internal/core"
	"madad/internal/metrics"
)

// ValueDiff is the percentage change of one scalar metric leaf.
type ValueDiff struct {
	ValuePct *float64 `json:"valuePct"`
}

// CurrencyDiff is the percentage change of a gross/net money leaf.
type CurrencyDiff struct {
	GrossPct *float64 `json:"grossPct"`
	NetPct   *float64 `json:"netPct"`
}

type FinancialDiff struct {
	MonthlyRevenue   CurrencyDiff `json:"monthlyRevenue"`
	ExpectedCashflow CurrencyDiff `json:"expectedCashflow"`
	ExpectedExpenses CurrencyDiff `json:"expectedExpenses"`
}

type MarketingDiff struct {
	TotalLeads           ValueDiff `json:"totalLeads"`
	RelevantLeads        ValueDiff `json:"relevantLeads"`
	LandingVisits        ValueDiff `json:"landingVisits"`
	LandingSignups       ValueDiff `json:"landingSignups"`
	LandingConversionPct ValueDiff `json:"landingConversionPct"`
	InstagramFollowers   ValueDiff `json:"instagramFollowers"`
}

type SalesDiff struct {
	SalesCalls        ValueDiff    `json:"salesCalls"`
	Closures          ValueDiff    `json:"closures"`
	AvgRevenuePerDeal CurrencyDiff `json:"avgRevenuePerDeal"`
	CloseRatePct      ValueDiff    `json:"closeRatePct"`
}

type OperationsDiff struct {
	ActiveCustomers      ValueDiff `json:"activeCustomers"`
	Cancellations        ValueDiff `json:"cancellations"`
	ReferralsWordOfMouth ValueDiff `json:"referralsWordOfMouth"`
	ReturningCustomers   ValueDiff `json:"returningCustomers"`
}

// MetricsDiff mirrors the metric tree with a percentage change at every
// leaf. The zero value has every leaf null, which is exactly the shape
// of a first snapshot's diff: never a false zero.
type MetricsDiff struct {
	Financial  FinancialDiff  `json:"financial"`
	Marketing  MarketingDiff  `json:"marketing"`
	Sales      SalesDiff      `json:"sales"`
	Operations OperationsDiff `json:"operations"`
}

// DeltaPct is the month-over-month change in percent, rounded to two
// decimals. Null when either side is missing or the previous value is 0.
func DeltaPct(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	d := core.Round2((*current - *previous) / *previous * 100)
	return &d
}

func deltaPctCount(current, previous *int64) *float64 {
	return DeltaPct(countFloat(current), countFloat(previous))
}

func countFloat(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func currencyDiff(cur, prev metrics.CurrencyMetric) CurrencyDiff {
	return CurrencyDiff{
		GrossPct: DeltaPct(cur.GrossILS, prev.GrossILS),
		NetPct:   DeltaPct(cur.NetILS, prev.NetILS),
	}
}

func countDiff(cur, prev metrics.CountMetric) ValueDiff {
	return ValueDiff{ValuePct: deltaPctCount(cur.Value, prev.Value)}
}

func percentDiff(cur, prev metrics.PercentMetric) ValueDiff {
	return ValueDiff{ValuePct: DeltaPct(cur.Value, prev.Value)}
}

// DiffFromPrevious applies DeltaPct leaf-wise across the metric tree.
func DiffFromPrevious(cur, prev metrics.DashboardMetrics) MetricsDiff {
	return MetricsDiff{
		Financial: FinancialDiff{
			MonthlyRevenue:   currencyDiff(cur.Financial.MonthlyRevenue, prev.Financial.MonthlyRevenue),
			ExpectedCashflow: currencyDiff(cur.Financial.ExpectedCashflow, prev.Financial.ExpectedCashflow),
			ExpectedExpenses: currencyDiff(cur.Financial.ExpectedExpenses, prev.Financial.ExpectedExpenses),
		},
		Marketing: MarketingDiff{
			TotalLeads:           countDiff(cur.Marketing.TotalLeads, prev.Marketing.TotalLeads),
			RelevantLeads:        countDiff(cur.Marketing.RelevantLeads, prev.Marketing.RelevantLeads),
			LandingVisits:        countDiff(cur.Marketing.LandingVisits, prev.Marketing.LandingVisits),
			LandingSignups:       countDiff(cur.Marketing.LandingSignups, prev.Marketing.LandingSignups),
			LandingConversionPct: percentDiff(cur.Marketing.LandingConversionPct, prev.Marketing.LandingConversionPct),
			InstagramFollowers:   countDiff(cur.Marketing.InstagramFollowers, prev.Marketing.InstagramFollowers),
		},
		Sales: SalesDiff{
			SalesCalls:        countDiff(cur.Sales.SalesCalls, prev.Sales.SalesCalls),
			Closures:          countDiff(cur.Sales.Closures, prev.Sales.Closures),
			AvgRevenuePerDeal: currencyDiff(cur.Sales.AvgRevenuePerDeal, prev.Sales.AvgRevenuePerDeal),
			CloseRatePct:      percentDiff(cur.Sales.CloseRatePct, prev.Sales.CloseRatePct),
		},
		Operations: OperationsDiff{
			ActiveCustomers:      countDiff(cur.Operations.ActiveCustomers, prev.Operations.ActiveCustomers),
			Cancellations:        countDiff(cur.Operations.Cancellations, prev.Operations.Cancellations),
			ReferralsWordOfMouth: countDiff(cur.Operations.ReferralsWordOfMouth, prev.Operations.ReferralsWordOfMouth),
			ReturningCustomers:   countDiff(cur.Operations.ReturningCustomers, prev.Operations.ReturningCustomers),
		},
	}
}

// noPreviousDiff is the diff of a snapshot with no predecessor. Computed
// as a self-diff with every leaf then nulled explicitly, which collapses
// to the zero value.
func noPreviousDiff() MetricsDiff {
	return MetricsDiff{}
}
