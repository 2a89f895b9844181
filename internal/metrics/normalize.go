package metrics

import (
	"strconv"
	"strings"

	"madad/internal/clickup"
	"madad/internal/core"
)

// NormalizedLead is the immutable per-task projection of a leads-list
// task. ClosedMs falls back to UpdatedMs when the task carries no
// explicit close timestamp; ClosedMsDerived records that fallback.
type NormalizedLead struct {
	ID              string
	Name            string
	Status          string
	CreatedMs       int64
	UpdatedMs       int64
	ClosedMs        int64
	ClosedMsDerived bool
	Phone           string
	Source          string
	LossReason      string
	BudgetGrossILS  float64
	HasBudget       bool
	PaidGrossILS    float64
	RequestedDateMs int64
}

// NormalizedEvent projects an event-calendar booking task.
type NormalizedEvent struct {
	ID                 string
	Name               string
	Status             string
	CreatedMs          int64
	UpdatedMs          int64
	ClosedMs           int64
	EventDateMs        int64
	DepositGrossILS    float64
	BalanceDueGrossILS float64
	HasBalanceDue      bool
	BudgetGrossILS     float64
	HasBudget          bool
}

// NormalizedExpense projects an expense task.
type NormalizedExpense struct {
	ID            string
	Name          string
	Status        string
	UpdatedMs     int64
	ExpenseDateMs int64
	GrossILS      float64
	HasAmount     bool
}

// NormalizeLead derives the lead projection once from a raw task.
func NormalizeLead(t clickup.Task, fields FieldMap) NormalizedLead {
	created, _ := clickup.ParseMs(t.DateCreated)
	updated, _ := clickup.ParseMs(t.DateUpdated)
	closed, hasClosed := clickup.ParseMs(t.DateClosed)

	lead := NormalizedLead{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.StatusName(),
		CreatedMs: created,
		UpdatedMs: updated,
		ClosedMs:  closed,
	}
	if !hasClosed {
		lead.ClosedMs = updated
		lead.ClosedMsDerived = true
	}

	if v, ok := fieldNumber(t, fields.LeadBudget); ok {
		lead.BudgetGrossILS = v
		lead.HasBudget = true
	}
	if v, ok := fieldNumber(t, fields.LeadPaidAmount); ok {
		lead.PaidGrossILS = v
	}
	if s, ok := fieldString(t, fields.LeadPhone); ok {
		lead.Phone = core.NormalizePhone(s)
	}
	lead.Source, _ = fieldString(t, fields.LeadSource)
	lead.LossReason, _ = fieldString(t, fields.LeadLossReason)
	if ms, ok := fieldMs(t, fields.LeadRequestedDate); ok {
		lead.RequestedDateMs = ms
	}
	return lead
}

// NormalizeEvent derives the event-calendar projection from a raw task.
func NormalizeEvent(t clickup.Task, fields FieldMap) NormalizedEvent {
	created, _ := clickup.ParseMs(t.DateCreated)
	updated, _ := clickup.ParseMs(t.DateUpdated)
	closed, _ := clickup.ParseMs(t.DateClosed)

	ev := NormalizedEvent{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.StatusName(),
		CreatedMs: created,
		UpdatedMs: updated,
		ClosedMs:  closed,
	}
	if ms, ok := fieldMs(t, fields.EventDate); ok {
		ev.EventDateMs = ms
	}
	if v, ok := fieldNumber(t, fields.EventDeposit); ok {
		ev.DepositGrossILS = v
	}
	if v, ok := fieldNumber(t, fields.EventBalanceDue); ok {
		ev.BalanceDueGrossILS = v
		ev.HasBalanceDue = true
	}
	if v, ok := fieldNumber(t, fields.EventBudget); ok {
		ev.BudgetGrossILS = v
		ev.HasBudget = true
	}
	return ev
}

// NormalizeExpense derives the expense projection from a raw task.
func NormalizeExpense(t clickup.Task, fields FieldMap) NormalizedExpense {
	updated, _ := clickup.ParseMs(t.DateUpdated)

	ex := NormalizedExpense{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.StatusName(),
		UpdatedMs: updated,
	}
	if ms, ok := fieldMs(t, fields.ExpenseDate); ok {
		ex.ExpenseDateMs = ms
	}
	if v, ok := fieldNumber(t, fields.ExpenseAmount); ok {
		ex.GrossILS = v
		ex.HasAmount = true
	}
	return ex
}

func findField(t clickup.Task, key string) (clickup.CustomField, bool) {
	for _, f := range t.CustomFields {
		if f.ID == key || strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(key)) {
			return f, true
		}
	}
	return clickup.CustomField{}, false
}

func fieldNumber(t clickup.Task, key string) (float64, bool) {
	f, ok := findField(t, key)
	if !ok || f.Value == nil {
		return 0, false
	}
	switch v := f.Value.(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func fieldString(t clickup.Task, key string) (string, bool) {
	f, ok := findField(t, key)
	if !ok || f.Value == nil {
		return "", false
	}
	switch v := f.Value.(type) {
	case string:
		return strings.TrimSpace(v), v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// fieldMs reads a date field. ClickUp serializes dates as epoch-ms
// strings, but numbers show up too.
func fieldMs(t clickup.Task, key string) (int64, bool) {
	f, ok := findField(t, key)
	if !ok || f.Value == nil {
		return 0, false
	}
	switch v := f.Value.(type) {
	case string:
		return clickup.ParseMs(v)
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
