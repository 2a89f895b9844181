package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"madad/internal/core"
	"madad/internal/metrics"
)

// MaxBackfillMonths bounds a single backfill span. Anything beyond it is
// almost certainly a corrupted month string, not a real gap.
const MaxBackfillMonths = 240

// SnapshotRecord is the persisted, versioned metrics document for one
// month. Records for past months are append-only; the record for the
// current target month is recomputed and overwritten on each refresh.
type SnapshotRecord struct {
	Version             string                   `json:"version"`
	Month               string                   `json:"month"`
	ComputedAt          time.Time                `json:"computedAt"`
	Metrics             metrics.DashboardMetrics `json:"metrics"`
	DiffFromPreviousPct MetricsDiff              `json:"diffFromPreviousPct"`
}

// Computer produces one month's metrics document. Satisfied by
// *metrics.Composer.
type Computer interface {
	Compute(ctx context.Context, month string, opts metrics.ComputeOptions) (*metrics.DashboardResult, error)
}

// Store persists the snapshot chain.
type Store interface {
	// LastSnapshotMonth returns the latest persisted month, "" when the
	// chain is empty.
	LastSnapshotMonth(ctx context.Context) (string, error)
	// GetSnapshot returns a month's record, nil when absent.
	GetSnapshot(ctx context.Context, month string) (*SnapshotRecord, error)
	// SaveSnapshot upserts a record and its breakdown documents.
	SaveSnapshot(ctx context.Context, rec SnapshotRecord, breakdowns map[string]metrics.BreakdownDoc) error
	// SetLatest updates the dashboard/latest pointer.
	SetLatest(ctx context.Context, rec SnapshotRecord) error
}

// MissingMonths lists the months a refresh up to targetMonth must
// compute: [targetMonth] when the chain is empty, nothing when the chain
// already covers the target, otherwise the inclusive range from the
// month after lastMonth through targetMonth.
func MissingMonths(lastMonth, targetMonth string) ([]string, error) {
	if _, err := core.ParseMonth(targetMonth); err != nil {
		return nil, err
	}
	if lastMonth == "" {
		return []string{targetMonth}, nil
	}
	if _, err := core.ParseMonth(lastMonth); err != nil {
		return nil, err
	}
	if core.CompareMonths(lastMonth, targetMonth) >= 0 {
		return []string{}, nil
	}

	var months []string
	month := lastMonth
	for {
		next, err := core.AddMonths(month, 1)
		if err != nil {
			return nil, err
		}
		month = next
		months = append(months, month)
		if len(months) > MaxBackfillMonths {
			return nil, fmt.Errorf("%w: %s..%s spans more than %d months",
				core.ErrRangeTooLarge, lastMonth, targetMonth, MaxBackfillMonths)
		}
		if month == targetMonth {
			return months, nil
		}
	}
}

// Engine drives the snapshot chain: it computes every missing month in
// ascending order, threading each month's metrics forward so the next
// month can diff against it. Months are processed strictly sequentially
// to preserve the chain's causal ordering.
type Engine struct {
	computer       Computer
	store          Store
	withBreakdowns bool
}

func NewEngine(computer Computer, store Store, withBreakdowns bool) *Engine {
	return &Engine{computer: computer, store: store, withBreakdowns: withBreakdowns}
}

// Refresh brings the chain up to targetMonth. When the chain already
// covers the target and the target is the current calendar month, the
// target is recomputed anyway so the live month reflects latest data.
// force extends that recompute-anyway behavior to covered past months.
func (e *Engine) Refresh(ctx context.Context, targetMonth string, computedAt time.Time, force bool) ([]SnapshotRecord, error) {
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	last, err := e.store.LastSnapshotMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last snapshot month: %w", err)
	}

	months, err := MissingMonths(last, targetMonth)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 && (force || targetMonth == core.MonthOf(computedAt)) {
		months = []string{targetMonth}
	}
	if len(months) == 0 {
		slog.InfoContext(ctx, "Snapshot chain already covers target", "target", targetMonth, "last", last)
		return nil, nil
	}

	prev, err := e.previousMetrics(ctx, months[0])
	if err != nil {
		return nil, err
	}

	records := make([]SnapshotRecord, 0, len(months))
	for _, month := range months {
		res, err := e.computer.Compute(ctx, month, metrics.ComputeOptions{
			ComputedAt:     computedAt,
			WithBreakdowns: e.withBreakdowns,
		})
		if err != nil {
			return records, fmt.Errorf("compute %s: %w", month, err)
		}

		rec := SnapshotRecord{
			Version:    metrics.DocumentVersion,
			Month:      month,
			ComputedAt: computedAt,
			Metrics:    res.Metrics,
		}
		if prev != nil {
			rec.DiffFromPreviousPct = DiffFromPrevious(res.Metrics, *prev)
		} else {
			rec.DiffFromPreviousPct = noPreviousDiff()
		}

		if err := e.store.SaveSnapshot(ctx, rec, res.Breakdowns); err != nil {
			return records, fmt.Errorf("save snapshot %s: %w", month, err)
		}

		slog.InfoContext(ctx, "Snapshot persisted", "month", month, "has_previous", prev != nil)
		records = append(records, rec)
		m := rec.Metrics
		prev = &m
	}

	// A forced recompute of a month behind the chain head must not
	// regress the latest pointer.
	head := records[len(records)-1]
	if last == "" || core.CompareMonths(head.Month, last) >= 0 {
		if err := e.store.SetLatest(ctx, head); err != nil {
			return records, fmt.Errorf("update latest pointer: %w", err)
		}
	}
	return records, nil
}

// previousMetrics loads the snapshot immediately before the first month
// to compute, when one exists.
func (e *Engine) previousMetrics(ctx context.Context, firstMonth string) (*metrics.DashboardMetrics, error) {
	prevMonth, err := core.AddMonths(firstMonth, -1)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.GetSnapshot(ctx, prevMonth)
	if err != nil {
		return nil, fmt.Errorf("read previous snapshot %s: %w", prevMonth, err)
	}
	if rec == nil {
		return nil, nil
	}
	return &rec.Metrics, nil
}
