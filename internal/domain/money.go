package domain

import (
	"fmt"

	"github.com/govalues/decimal"
)

// Amount is a fixed-point money value carrying exactly 2 fractional
// digits, per spec.md §3's Line.amount field.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// NewAmount builds an Amount from a decimal string (e.g. "5000.00").
func NewAmount(s string) (Amount, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d.Round(2)}, nil
}

// NewAmountFromFloat builds an Amount from a float64, rounding to 2
// fractional digits. Used only at parsing boundaries (CSV/JSON ingest)
// where upstream data already arrives as a float.
func NewAmountFromFloat(f float64) Amount {
	d, err := decimal.NewFromFloat64(f)
	if err != nil {
		return ZeroAmount
	}
	return Amount{d: d.Round(2)}
}

func (a Amount) String() string { return a.d.String() }

// Float64 returns the amount as a float64, for feature scoring math
// where decimal precision loss below 2 fractional digits is immaterial.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

func (a Amount) Add(b Amount) Amount {
	sum, err := a.d.Add(b.d)
	if err != nil {
		return a
	}
	return Amount{d: sum.Round(2)}
}

func (a Amount) Sub(b Amount) Amount {
	diff, err := a.d.Sub(b.d)
	if err != nil {
		return a
	}
	return Amount{d: diff.Round(2)}
}

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }
func (a Amount) LessThan(b Amount) bool    { return a.Cmp(b) < 0 }
func (a Amount) GTE(b Amount) bool         { return a.Cmp(b) >= 0 }
func (a Amount) LTE(b Amount) bool         { return a.Cmp(b) <= 0 }

// WithinTolerance reports whether |a-b| <= tolerance, per the 0.01
// equality tolerance used by invariant 1 (§3) and ARL amount checks (§4.6).
func (a Amount) WithinTolerance(b, tolerance Amount) bool {
	diff, err := a.d.Sub(b.d)
	if err != nil {
		return false
	}
	if diff.Sign() < 0 {
		diff = diff.Neg()
	}
	return diff.Cmp(tolerance.d) <= 0
}

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return err
	}
	a.d = d.Round(2)
	return nil
}
