// Package core provides the time and money primitives shared by every
// metric computation: half-open UTC month ranges, gross/net VAT conversion
// and minor-unit (agorot) handling.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VATRate is the fixed Israeli VAT applied when deriving a missing
// gross or net side. Gross = Net * (1 + VATRate).
const VATRate = 0.18

const vatFactor = 1.0 + VATRate

// Amount is a gross/net pair in ILS. A nil side means unknown.
// Notes carry provenance for derived or missing values.
type Amount struct {
	GrossILS *float64 `json:"grossILS"`
	NetILS   *float64 `json:"netILS"`
	Notes    []string `json:"notes,omitempty"`
}

// Float returns a pointer to v, for building optional amounts inline.
func Float(v float64) *float64 { return &v }

// GrossAmount builds an Amount from a known gross side only.
func GrossAmount(gross float64) Amount {
	return Amount{GrossILS: Float(gross)}
}

// EnsureNetGross fills the missing side of an amount using the fixed VAT
// rate. It is the single conversion point: every reported money metric
// must pass through here exactly once.
//
//   - both sides nil: returned unchanged with a "no amount" note
//   - both sides present: passthrough
//   - one side present: the other is derived and a note records which
func EnsureNetGross(a Amount) Amount {
	switch {
	case a.GrossILS == nil && a.NetILS == nil:
		a.Notes = append(a.Notes, "no amount")
	case a.GrossILS != nil && a.NetILS == nil:
		net := *a.GrossILS / vatFactor
		a.NetILS = &net
		a.Notes = append(a.Notes, fmt.Sprintf("net derived from gross at %.0f%% VAT", VATRate*100))
	case a.GrossILS == nil && a.NetILS != nil:
		gross := *a.NetILS * vatFactor
		a.GrossILS = &gross
		a.Notes = append(a.Notes, fmt.Sprintf("gross derived from net at %.0f%% VAT", VATRate*100))
	}
	return a
}

// Agorot converts an ILS float to integer agorot (ILS x 100), half-up.
// Breakdown line items are persisted in agorot to avoid float drift.
func Agorot(ils float64) int64 {
	return decimal.NewFromFloat(ils).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Round2 rounds to two decimal places, half-up.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
