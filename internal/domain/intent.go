package domain

// MatchKind records how an intent was resolved (spec.md §4.2).
type MatchKind string

const (
	MatchExact MatchKind = "EXACT"
	MatchFuzzy MatchKind = "FUZZY"
	MatchNone  MatchKind = "NONE"
)

// IntentResult is the classifier's output for one Line (spec.md §3, §4.2).
type IntentResult struct {
	LineID     string      `json:"line_id"`
	Intent     PaymentType `json:"intent"`
	MatchKind  MatchKind   `json:"match_kind"`
	RiskScore  float64     `json:"risk_score"`
	Confidence float64     `json:"confidence"`
}
