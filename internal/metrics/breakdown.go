package metrics

// Breakdown kinds. A breakdown document lists the records that sum up to
// one reported metric, for drill-down rendering.
const (
	BreakdownNone      = "none"
	BreakdownNames     = "names"
	BreakdownLineItems = "line_items"
)

// LineItem is one record's contribution to a money metric.
// AmountAgorot is gross ILS in integer minor units (ILS x 100).
type LineItem struct {
	Name         string `json:"name"`
	AmountAgorot int64  `json:"amountAgorot"`
	Note         string `json:"note,omitempty"`
}

// BreakdownDoc is the side document for one metric key. Kind selects
// which of the payload fields is meaningful.
type BreakdownDoc struct {
	Kind     string     `json:"kind"`
	Currency string     `json:"currency,omitempty"`
	Names    []string   `json:"names,omitempty"`
	Items    []LineItem `json:"items,omitempty"`
}

func namesBreakdown(names []string) BreakdownDoc {
	if len(names) == 0 {
		return BreakdownDoc{Kind: BreakdownNone}
	}
	return BreakdownDoc{Kind: BreakdownNames, Names: names}
}

func lineItemsBreakdown(items []LineItem) BreakdownDoc {
	if len(items) == 0 {
		return BreakdownDoc{Kind: BreakdownNone}
	}
	return BreakdownDoc{Kind: BreakdownLineItems, Currency: "ILS", Items: items}
}
