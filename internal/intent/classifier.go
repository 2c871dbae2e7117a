// Package intent classifies a Line's business purpose (spec.md §4.2):
// exact/fuzzy keyword match against a curated map, falling back to
// amount bucketing, plus a deterministic risk and confidence score.
// Grounded on the teacher's router.SmartRouter rule-matching shape
// (ordered rule table, first-match-wins / best-match-wins), with glob
// matching replaced by agnivade/levenshtein fuzzy similarity.
package intent

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

const fuzzyThreshold = 0.6

// keyword is one entry of the curated purpose-code/remarks map.
// Declaration order breaks ties among equally-similar fuzzy matches
// (spec.md §4.2 rule 6).
type keyword struct {
	term   string
	intent domain.PaymentType
}

var keywordMap = []keyword{
	{"SALARY", domain.PaymentPayroll},
	{"PAYROLL", domain.PaymentPayroll},
	{"WAGES", domain.PaymentPayroll},
	{"VENDOR_PAYMENT", domain.PaymentVendor},
	{"VENDOR", domain.PaymentVendor},
	{"SUPPLIER", domain.PaymentVendor},
	{"LOAN_DISBURSEMENT", domain.PaymentLoan},
	{"LOAN", domain.PaymentLoan},
	{"DISBURSEMENT", domain.PaymentLoan},
	{"UTILITY", domain.PaymentUtility},
	{"ELECTRICITY", domain.PaymentUtility},
	{"WATER_BILL", domain.PaymentUtility},
	{"TAX", domain.PaymentTax},
	{"GST", domain.PaymentTax},
	{"TDS", domain.PaymentTax},
	{"REFUND", domain.PaymentRefund},
	{"CHARGEBACK", domain.PaymentRefund},
	{"TRANSFER", domain.PaymentTransfer},
	{"FUND_TRANSFER", domain.PaymentTransfer},
}

// AccountConfidence is the account-standing input to the confidence
// formula (spec.md §4.2 rule 5).
type AccountConfidence string

const (
	AccountNormal  AccountConfidence = "normal"
	AccountNew     AccountConfidence = "new"
	AccountFlagged AccountConfidence = "flagged"
)

// Input bundles everything the classifier needs beyond the keyword
// text, since risk/confidence depend on account standing and
// completeness as well as the match itself.
type Input struct {
	Text             string // uppercase-trimmed purpose/remarks, pre-joined by caller
	Amount           domain.Amount
	IsDomestic       bool
	RequiredFieldsOK bool
	Account          AccountConfidence
}

func Classify(in Input) domain.IntentResult {
	text := strings.ToUpper(strings.TrimSpace(in.Text))

	intent, kind := matchKeyword(text)
	if kind == domain.MatchNone {
		intent = bucketByAmount(in.Amount)
	}

	risk := round2(riskScore(in, kind))
	confidence := round2(confidenceScore(kind, in))

	return domain.IntentResult{
		Intent:     intent,
		MatchKind:  kind,
		RiskScore:  risk,
		Confidence: confidence,
	}
}

func matchKeyword(text string) (domain.PaymentType, domain.MatchKind) {
	for _, k := range keywordMap {
		if text == k.term {
			return k.intent, domain.MatchExact
		}
	}

	bestRatio := 0.0
	bestIntent := domain.PaymentUnknown
	for _, k := range keywordMap {
		ratio := similarityRatio(text, k.term)
		if ratio > bestRatio {
			bestRatio = ratio
			bestIntent = k.intent
		}
	}
	if bestRatio >= fuzzyThreshold {
		return bestIntent, domain.MatchFuzzy
	}
	return domain.PaymentUnknown, domain.MatchNone
}

// similarityRatio converts Levenshtein edit distance into a 0..1
// similarity ratio, matching the common "ratio" definition:
// 1 - distance/max(len(a), len(b)).
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// bucketByAmount is the NONE-match fallback (spec.md §4.2 rule 3).
func bucketByAmount(amount domain.Amount) domain.PaymentType {
	v := amount.Float64()
	switch {
	case v > 1_000_000:
		return domain.PaymentVendor
	case v >= 100_000:
		return domain.PaymentPayroll
	default:
		return domain.PaymentUtility
	}
}

func riskScore(in Input, kind domain.MatchKind) float64 {
	amountRisk := math.Min(1, in.Amount.Float64()/100_000)

	zoneRisk := 0.1
	if !in.IsDomestic {
		zoneRisk = 0.3
	}

	purposeRisk := 0.2
	if kind == domain.MatchExact {
		purposeRisk = 0.1
	}

	var accountRisk float64
	switch in.Account {
	case AccountNew:
		accountRisk = 0.05
	case AccountFlagged:
		accountRisk = 0.2
	default:
		accountRisk = 0.0
	}

	return 0.4*amountRisk + 0.2*zoneRisk + 0.25*purposeRisk + 0.15*accountRisk
}

func confidenceScore(kind domain.MatchKind, in Input) float64 {
	matchConfidence := map[domain.MatchKind]float64{
		domain.MatchExact: 0.9,
		domain.MatchFuzzy: 0.7,
		domain.MatchNone:  0.5,
	}[kind]

	completeness := 0.7
	if in.RequiredFieldsOK {
		completeness = 1.0
	}

	accountConf := map[AccountConfidence]float64{
		AccountNormal:  0.95,
		AccountNew:     0.7,
		AccountFlagged: 0.5,
	}[in.Account]
	if accountConf == 0 {
		accountConf = 0.95
	}

	return math.Pow(matchConfidence, 0.5) * math.Pow(completeness, 0.3) * math.Pow(accountConf, 0.2)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
