package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidMonth  = errors.New("invalid month: expected YYYY-MM")
	ErrRangeTooLarge = errors.New("month range too large")
)

// MonthRange is a half-open interval over one UTC calendar month.
// EndExclusiveMs is the start instant of the following month, so
// membership is always ms >= StartMs && ms < EndExclusiveMs.
type MonthRange struct {
	Month          string `json:"month"`
	StartMs        int64  `json:"startMs"`
	EndExclusiveMs int64  `json:"endExclusiveMs"`
}

// ParseMonth validates a YYYY-MM string and returns its UTC range.
func ParseMonth(month string) (MonthRange, error) {
	year, m, err := splitMonth(month)
	if err != nil {
		return MonthRange{}, err
	}
	start := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return MonthRange{
		Month:          month,
		StartMs:        start.UnixMilli(),
		EndExclusiveMs: end.UnixMilli(),
	}, nil
}

// Contains reports whether the epoch-ms instant falls inside the month.
func (r MonthRange) Contains(ms int64) bool {
	return ms >= r.StartMs && ms < r.EndExclusiveMs
}

// FormatMonth renders a year and 1-based month as YYYY-MM.
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthOf returns the YYYY-MM string containing the given UTC instant.
func MonthOf(t time.Time) string {
	u := t.UTC()
	return FormatMonth(u.Year(), int(u.Month()))
}

// AddMonths shifts a YYYY-MM string by n calendar months.
func AddMonths(month string, n int) (string, error) {
	year, m, err := splitMonth(month)
	if err != nil {
		return "", err
	}
	t := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return FormatMonth(t.Year(), int(t.Month())), nil
}

// CompareMonths orders two valid YYYY-MM strings chronologically.
func CompareMonths(a, b string) int {
	return strings.Compare(a, b)
}

func splitMonth(month string) (year, m int, err error) {
	parts := strings.Split(month, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	return year, m, nil
}
