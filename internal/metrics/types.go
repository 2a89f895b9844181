package metrics

import "madad/internal/core"

// DocumentVersion tags the dashboard document schema.
const DocumentVersion = "v1"

type Source string

const (
	SourceClickUp   Source = "clickup"
	SourceInstagram Source = "instagram"
	SourceComputed  Source = "computed"
)

// Meta carries provenance for a metric. A null value must be accompanied
// by a note whenever the null is non-trivial ("no data" vs a real zero).
type Meta struct {
	Source Source   `json:"source"`
	Notes  []string `json:"notes,omitempty"`
}

func (m *Meta) addNote(note string) {
	if note != "" {
		m.Notes = append(m.Notes, note)
	}
}

type CountMetric struct {
	Value *int64 `json:"value"`
	Meta  Meta   `json:"meta"`
}

type PercentMetric struct {
	Value *float64 `json:"value"`
	Meta  Meta     `json:"meta"`
}

type CurrencyMetric struct {
	GrossILS *float64 `json:"grossILS"`
	NetILS   *float64 `json:"netILS"`
	Meta     Meta     `json:"meta"`
}

func countOf(v int64, src Source) CountMetric {
	return CountMetric{Value: &v, Meta: Meta{Source: src}}
}

func nullCount(src Source, note string) CountMetric {
	m := CountMetric{Meta: Meta{Source: src}}
	m.Meta.addNote(note)
	return m
}

func percentOf(v float64, src Source) PercentMetric {
	return PercentMetric{Value: &v, Meta: Meta{Source: src}}
}

func nullPercent(src Source, note string) PercentMetric {
	m := PercentMetric{Meta: Meta{Source: src}}
	m.Meta.addNote(note)
	return m
}

// currencyOf wraps an amount that already went through EnsureNetGross.
func currencyOf(a core.Amount, src Source) CurrencyMetric {
	return CurrencyMetric{
		GrossILS: a.GrossILS,
		NetILS:   a.NetILS,
		Meta:     Meta{Source: src, Notes: a.Notes},
	}
}

type FinancialMetrics struct {
	MonthlyRevenue   CurrencyMetric `json:"monthlyRevenue"`
	ExpectedCashflow CurrencyMetric `json:"expectedCashflow"`
	ExpectedExpenses CurrencyMetric `json:"expectedExpenses"`
}

type MarketingMetrics struct {
	TotalLeads           CountMetric   `json:"totalLeads"`
	RelevantLeads        CountMetric   `json:"relevantLeads"`
	LandingVisits        CountMetric   `json:"landingVisits"`
	LandingSignups       CountMetric   `json:"landingSignups"`
	LandingConversionPct PercentMetric `json:"landingConversionPct"`
	InstagramFollowers   CountMetric   `json:"instagramFollowers"`
}

type SalesMetrics struct {
	SalesCalls        CountMetric    `json:"salesCalls"`
	Closures          CountMetric    `json:"closures"`
	AvgRevenuePerDeal CurrencyMetric `json:"avgRevenuePerDeal"`
	CloseRatePct      PercentMetric  `json:"closeRatePct"`
}

type OperationsMetrics struct {
	ActiveCustomers      CountMetric `json:"activeCustomers"`
	Cancellations        CountMetric `json:"cancellations"`
	ReferralsWordOfMouth CountMetric `json:"referralsWordOfMouth"`
	ReturningCustomers   CountMetric `json:"returningCustomers"`
}

// DashboardMetrics is the versioned metrics document for one month.
type DashboardMetrics struct {
	Version    string            `json:"version"`
	Month      string            `json:"month"`
	Financial  FinancialMetrics  `json:"financial"`
	Marketing  MarketingMetrics  `json:"marketing"`
	Sales      SalesMetrics      `json:"sales"`
	Operations OperationsMetrics `json:"operations"`
}
