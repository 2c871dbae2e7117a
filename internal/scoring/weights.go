// Package scoring implements the Rail Scoring & Decision subsystem
// (PDR) of spec.md §4.4: hard-constraint filtering, feature
// extraction, cross-rail normalization, weighted linear scoring and
// the execution cascade. Grounded on the teacher's
// router.SmartRouter rule-table shape for the filter stage and
// risk.Calculator's weighted-sum idiom for the scoring stage.
package scoring

// Weights names the ten PDR features of spec.md §4.4.2, each mapped
// to its contribution to the final linear score. Defaults sum to 1.0;
// callers may override per invocation.
type Weights map[string]float64

const (
	FeatureETA                 = "eta_ms"
	FeatureCost                = "cost_bps"
	FeatureSuccessProb         = "success_prob"
	FeatureCompliancePenalty   = "compliance_penalty"
	FeatureRiskScore           = "risk_score"
	FeatureCriticPenaltyDecay  = "critic_penalty_decay"
	FeatureWindowBonus         = "window_bonus"
	FeatureAmountMatchBonus    = "amount_match_bonus"
	FeatureWorkingHoursPenalty = "working_hours_penalty"
	FeatureSettlementCertainty = "settlement_certainty"
)

// DefaultWeights sums to 1.0.
var DefaultWeights = Weights{
	FeatureETA:                 0.15,
	FeatureCost:                0.10,
	FeatureSuccessProb:         0.15,
	FeatureCompliancePenalty:   0.10,
	FeatureRiskScore:           0.10,
	FeatureCriticPenaltyDecay:  0.10,
	FeatureWindowBonus:         0.05,
	FeatureAmountMatchBonus:    0.15,
	FeatureWorkingHoursPenalty: 0.05,
	FeatureSettlementCertainty: 0.05,
}

// lowerIsBetter names features inverted during normalization so that
// 1.0 is always the best-scoring value (spec.md §4.4.3).
var lowerIsBetter = map[string]bool{
	FeatureETA:                 true,
	FeatureCost:                true,
	FeatureCompliancePenalty:   true,
	FeatureRiskScore:           true,
	FeatureCriticPenaltyDecay:  true,
	FeatureWorkingHoursPenalty: true,
}

func (w Weights) orDefault(key string) float64 {
	if v, ok := w[key]; ok {
		return v
	}
	return DefaultWeights[key]
}
