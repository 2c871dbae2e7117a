package scoring

import "strings"

// amountMatchBonus implements the rail-specific piecewise function of
// spec.md §4.4's "Amount-match function (illustrative contract)":
// UPI peaks for small amounts and degrades above 100k; IMPS peaks in
// the mid-range; NEFT and RTGS favor larger amounts; intrabank is
// flat. Keyed by rail name since IMPS and UPI share a RailType
// category but have distinct curves. Reproducible for a given
// (rail name, amount) pair.
func amountMatchBonus(railName string, amount float64) float64 {
	switch strings.ToUpper(railName) {
	case "INTRABANK":
		return 0.9
	case "UPI":
		switch {
		case amount <= 25_000:
			return 1.0
		case amount > 100_000:
			return 0.3
		default:
			return 1.0 - 0.7*(amount-25_000)/(100_000-25_000)
		}
	case "IMPS":
		return impsAmountMatch(amount)
	case "NEFT":
		if amount >= 50_000 {
			return 1.0
		}
		return 0.4 + 0.6*amount/50_000
	case "RTGS":
		switch {
		case amount >= 500_000:
			return 1.0
		case amount < 200_000:
			return 0.3
		default:
			return 0.3 + 0.7*(amount-200_000)/(500_000-200_000)
		}
	default:
		return 0.5
	}
}

func impsAmountMatch(amount float64) float64 {
	switch {
	case amount < 1_000:
		return 0.4 + 0.6*amount/1_000
	case amount <= 200_000:
		return 1.0
	default:
		over := amount - 200_000
		bonus := 1.0 - over/500_000
		if bonus < 0.3 {
			return 0.3
		}
		return bonus
	}
}
