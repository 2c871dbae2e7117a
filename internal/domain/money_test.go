package domain

import "testing"

func mustAmt(t *testing.T, s string) Amount {
	t.Helper()
	a, err := NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}

func TestAmountBoundaryComparisons(t *testing.T) {
	min := mustAmt(t, "100000.00")
	max := mustAmt(t, "500000.00")

	cases := []struct {
		name     string
		amount   Amount
		wantGTE  bool
		wantLTE  bool
	}{
		{"exactly at min", min, true, true},
		{"exactly at max", max, true, true},
		{"one paisa below min", mustAmt(t, "99999.99"), false, true},
		{"one paisa above max", mustAmt(t, "500000.01"), true, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.amount.GTE(min); got != c.wantGTE {
				t.Errorf("GTE(min) = %v, want %v", got, c.wantGTE)
			}
			if got := c.amount.LTE(max); got != c.wantLTE {
				t.Errorf("LTE(max) = %v, want %v", got, c.wantLTE)
			}
		})
	}
}

func TestAmountWithinTolerance(t *testing.T) {
	tol := mustAmt(t, "0.01")
	a := mustAmt(t, "5000.00")

	if !a.WithinTolerance(mustAmt(t, "5000.01"), tol) {
		t.Error("expected 5000.00 within 0.01 of 5000.01")
	}
	if a.WithinTolerance(mustAmt(t, "5000.02"), tol) {
		t.Error("expected 5000.00 NOT within 0.01 of 5000.02")
	}
}

func TestAmountArithmeticRoundTrip(t *testing.T) {
	a := mustAmt(t, "5000.00")
	b := mustAmt(t, "1234.56")

	sum := a.Add(b)
	if sum.String() != "6234.56" {
		t.Errorf("Add: got %s, want 6234.56", sum.String())
	}
	diff := sum.Sub(b)
	if diff.Cmp(a) != 0 {
		t.Errorf("Sub did not round-trip: got %s, want %s", diff.String(), a.String())
	}
}
