package metrics

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"madad/internal/clickup"
	"madad/internal/core"
	"madad/internal/insights"
)

const (
	leadsList    = "L1"
	eventsList   = "L2"
	expensesList = "L3"
)

func testComposerConfig() ComposerConfig {
	return ComposerConfig{
		LeadsListID:    leadsList,
		EventsListID:   eventsList,
		ExpensesListID: expensesList,
		Fields:         DefaultFieldMap(),
		Vocab:          DefaultVocabulary(),
	}
}

func msStr(ms int64) string { return strconv.FormatInt(ms, 10) }

func numField(name string, v float64) clickup.CustomField {
	return clickup.CustomField{Name: name, Value: v}
}

func strField(name, v string) clickup.CustomField {
	return clickup.CustomField{Name: name, Value: v}
}

// fixtureSource builds one month of realistic data for 2025-06:
// two bookings, two leads and one expense.
func fixtureSource(t *testing.T) (*fakeTaskSource, core.MonthRange) {
	t.Helper()
	rng := mustMonth(t, "2025-06")
	inMonth := rng.StartMs + 24*3600*1000

	src := &fakeTaskSource{
		tasksByList: map[string][]clickup.Task{
			leadsList: {
				{
					ID: "l1", Name: "Noa", Status: &clickup.TaskStatus{Status: "New Lead"},
					DateCreated: msStr(inMonth),
					CustomFields: []clickup.CustomField{
						strField("Source", "Landing Page"),
						strField("Phone", "+972501234567"),
					},
				},
				{
					ID: "l2", Name: "Amir", Status: &clickup.TaskStatus{Status: "Closed Won"},
					DateCreated: msStr(inMonth),
					DateClosed:  msStr(inMonth + 1000),
					CustomFields: []clickup.CustomField{
						numField("Budget", 4000),
					},
				},
			},
			eventsList: {
				{
					ID: "ev1", Name: "Wedding", Status: &clickup.TaskStatus{Status: "booked"},
					DateCreated: msStr(rng.StartMs - 1000),
					DateUpdated: msStr(inMonth),
					CustomFields: []clickup.CustomField{
						numField("Deposit", 500),
						numField("Balance Due", 2000),
						numField("Event Date", float64(inMonth+5000)),
					},
				},
				{
					ID: "ev2", Name: "Gala", Status: &clickup.TaskStatus{Status: "done"},
					DateCreated: msStr(rng.StartMs - 1000),
					DateUpdated: msStr(inMonth),
					CustomFields: []clickup.CustomField{
						numField("Balance Due", 3000),
					},
				},
			},
			expensesList: {
				{
					ID: "x1", Name: "Catering", Status: &clickup.TaskStatus{Status: "open"},
					CustomFields: []clickup.CustomField{
						numField("Amount", 300),
						numField("Expense Date", float64(inMonth)),
					},
				},
			},
		},
		commentsByTask: map[string][]clickup.Comment{
			"ev1": {userComment("Deposit paid, see receipt", inMonth)},
			"ev2": {
				botComment("status has changed to: Billing", inMonth),
				botComment("status has changed to: Done", inMonth+100),
			},
		},
	}
	return src, rng
}

func TestComposer_Compute(t *testing.T) {
	ctx := context.Background()
	src, rng := fixtureSource(t)
	computedAt := time.UnixMilli(rng.StartMs + 20*24*3600*1000).UTC()

	c := NewComposer(src, nil, testComposerConfig())
	res, err := c.Compute(ctx, "2025-06", ComputeOptions{ComputedAt: computedAt, WithBreakdowns: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := res.Metrics

	if doc.Version != DocumentVersion || doc.Month != "2025-06" {
		t.Fatalf("unexpected envelope: %+v", doc)
	}

	t.Run("financial", func(t *testing.T) {
		// Wedding: deposit confirmed in-month (500). Gala: balance
		// released by the Done transition (3000).
		if g := doc.Financial.MonthlyRevenue.GrossILS; g == nil || *g != 3500 {
			t.Fatalf("expected revenue 3500, got %v", g)
		}
		// Wedding: deposit 500 + balance 2000 for the in-month event
		// date. Gala: balance 3000 via Billing-to-Done.
		if g := doc.Financial.ExpectedCashflow.GrossILS; g == nil || *g != 5500 {
			t.Fatalf("expected cashflow 5500, got %v", g)
		}
		if g := doc.Financial.ExpectedExpenses.GrossILS; g == nil || *g != 300 {
			t.Fatalf("expected expenses 300, got %v", g)
		}
	})

	t.Run("marketing", func(t *testing.T) {
		if *doc.Marketing.TotalLeads.Value != 2 {
			t.Fatalf("expected 2 leads, got %d", *doc.Marketing.TotalLeads.Value)
		}
		if doc.Marketing.InstagramFollowers.Value != nil {
			t.Fatal("expected null followers without an insights source")
		}
		if len(doc.Marketing.InstagramFollowers.Meta.Notes) == 0 {
			t.Fatal("expected a note on the null follower metric")
		}
	})

	t.Run("sales", func(t *testing.T) {
		if *doc.Sales.SalesCalls.Value != 1 {
			t.Fatalf("expected 1 sales call, got %d", *doc.Sales.SalesCalls.Value)
		}
		if *doc.Sales.Closures.Value != 1 {
			t.Fatalf("expected 1 closure, got %d", *doc.Sales.Closures.Value)
		}
		if v := doc.Sales.CloseRatePct.Value; v == nil || *v != 100 {
			t.Fatalf("expected 100%% close rate, got %v", v)
		}
	})

	t.Run("breakdowns", func(t *testing.T) {
		rev, ok := res.Breakdowns["monthlyRevenue"]
		if !ok || rev.Kind != BreakdownLineItems {
			t.Fatalf("expected line-item revenue breakdown, got %+v", rev)
		}
		if len(rev.Items) != 2 {
			t.Fatalf("expected 2 revenue line items, got %+v", rev.Items)
		}
		closures := res.Breakdowns["closures"]
		if closures.Kind != BreakdownNames || len(closures.Names) != 1 || closures.Names[0] != "Amir" {
			t.Fatalf("expected closures breakdown [Amir], got %+v", closures)
		}
		if res.Breakdowns["returningCustomers"].Kind != BreakdownNone {
			t.Fatal("expected empty returning-customers breakdown")
		}
	})
}

func TestComposer_Compute_InvalidMonth(t *testing.T) {
	src, _ := fixtureSource(t)
	c := NewComposer(src, nil, testComposerConfig())
	if _, err := c.Compute(context.Background(), "2025-6", ComputeOptions{}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestComposer_Compute_LeadFallback(t *testing.T) {
	src, rng := fixtureSource(t)
	src.tasksByList[eventsList] = nil // no event calendar data at all
	computedAt := time.UnixMilli(rng.StartMs + 20*24*3600*1000).UTC()

	c := NewComposer(src, nil, testComposerConfig())
	res, err := c.Compute(context.Background(), "2025-06", ComputeOptions{ComputedAt: computedAt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g := res.Metrics.Financial.MonthlyRevenue.GrossILS; g == nil || *g != 4000 {
		t.Fatalf("expected fallback revenue 4000 from closed-won lead, got %v", g)
	}
}

type fakeInsights struct {
	points []insights.FollowerPoint
	err    error
}

func (f *fakeInsights) GetFollowerCountSeries(context.Context, insights.SeriesParams) ([]insights.FollowerPoint, error) {
	return f.points, f.err
}

func TestComposer_FollowerMetric(t *testing.T) {
	src, rng := fixtureSource(t)
	computedAt := time.UnixMilli(rng.StartMs + 20*24*3600*1000).UTC()

	t.Run("last point of the series wins", func(t *testing.T) {
		ins := &fakeInsights{points: []insights.FollowerPoint{
			{EndTimeISO: "2025-06-14T07:00:00Z", Value: 1200},
			{EndTimeISO: "2025-06-15T07:00:00Z", Value: 1234},
		}}
		c := NewComposer(src, ins, testComposerConfig())
		res, err := c.Compute(context.Background(), "2025-06", ComputeOptions{ComputedAt: computedAt})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v := res.Metrics.Marketing.InstagramFollowers.Value; v == nil || *v != 1234 {
			t.Fatalf("expected 1234 followers, got %v", v)
		}
	})

	t.Run("historical month is null with note", func(t *testing.T) {
		ins := &fakeInsights{points: []insights.FollowerPoint{{Value: 99}}}
		c := NewComposer(src, ins, testComposerConfig())
		// computedAt is in June; January is out of the serving window.
		res, err := c.Compute(context.Background(), "2025-01", ComputeOptions{ComputedAt: computedAt})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Metrics.Marketing.InstagramFollowers.Value != nil {
			t.Fatal("expected null followers outside the serving window")
		}
	})

	t.Run("fetch failure degrades to null", func(t *testing.T) {
		ins := &fakeInsights{err: errors.New("token expired")}
		c := NewComposer(src, ins, testComposerConfig())
		res, err := c.Compute(context.Background(), "2025-06", ComputeOptions{ComputedAt: computedAt})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m := res.Metrics.Marketing.InstagramFollowers
		if m.Value != nil || len(m.Meta.Notes) == 0 {
			t.Fatalf("expected null-with-note, got %+v", m)
		}
	})
}
