// Package metrics is the computation core: it normalizes raw tasks,
// extracts typed events from free-text comments, aggregates the four
// KPI groups for one calendar month and assembles the versioned
// dashboard document with optional per-metric breakdowns.
package metrics

import "strings"

// FieldMap names the custom fields the normalizer reads off each task
// collection. Matching is by field ID when set, otherwise by
// case-insensitive field name, so the vocabulary is swappable in tests.
type FieldMap struct {
	LeadBudget        string
	LeadPaidAmount    string
	LeadPhone         string
	LeadSource        string
	LeadLossReason    string
	LeadRequestedDate string

	EventDate       string
	EventDeposit    string
	EventBalanceDue string
	EventBudget     string

	ExpenseAmount string
	ExpenseDate   string
}

// DefaultFieldMap matches the workspace's field naming.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		LeadBudget:        "Budget",
		LeadPaidAmount:    "Paid Amount",
		LeadPhone:         "Phone",
		LeadSource:        "Source",
		LeadLossReason:    "Loss Reason",
		LeadRequestedDate: "Requested Date",

		EventDate:       "Event Date",
		EventDeposit:    "Deposit",
		EventBalanceDue: "Balance Due",
		EventBudget:     "Budget",

		ExpenseAmount: "Amount",
		ExpenseDate:   "Expense Date",
	}
}

// Vocabulary holds the status and source labels the aggregators compare
// against. All comparisons are case-insensitive and trimmed.
type Vocabulary struct {
	// AutomationBotName is the reserved author name of automation
	// comments. User ID -1 is always treated as the bot.
	AutomationBotName string

	StatusNewLead    string
	StatusClosedWon  string
	StatusClosedLost string
	StatusCancelled  string
	StatusBilling    string
	StatusDone       string

	LossReasonNotRelevant string

	SourceLandingPage string
	SourceWordOfMouth string

	// ActiveStatuses is the open set counted as active customers.
	ActiveStatuses []string

	// CompletionStatuses denote a finished event, used when a task has
	// no explicit close timestamp and no Done transition comment.
	CompletionStatuses []string
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		AutomationBotName:     "Automation",
		StatusNewLead:         "New Lead",
		StatusClosedWon:       "Closed Won",
		StatusClosedLost:      "Closed Lost",
		StatusCancelled:       "Cancelled",
		StatusBilling:         "Billing",
		StatusDone:            "Done",
		LossReasonNotRelevant: "Not Relevant",
		SourceLandingPage:     "Landing Page",
		SourceWordOfMouth:     "Word of Mouth",
		ActiveStatuses:        []string{"booked", "staffing", "logistics", "ready"},
		CompletionStatuses:    []string{"done", "complete", "completed"},
	}
}

// normText canonicalizes status, author and source text for comparison.
func normText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sameText(a, b string) bool {
	return normText(a) == normText(b)
}

func (v Vocabulary) isActiveStatus(status string) bool {
	n := normText(status)
	for _, s := range v.ActiveStatuses {
		if n == normText(s) {
			return true
		}
	}
	return false
}

func (v Vocabulary) isCompletionStatus(status string) bool {
	n := normText(status)
	for _, s := range v.CompletionStatuses {
		if n == normText(s) {
			return true
		}
	}
	return false
}
