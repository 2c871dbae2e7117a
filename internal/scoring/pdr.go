package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// FilterInput bundles the inputs to the hard-constraint filter of
// spec.md §4.4.1.
type FilterInput struct {
	Line       domain.Line
	ACC        domain.ACCDecision
	IsNewUser  bool
	Now        time.Time
}

// Filter returns the eligible rails and the rejection reasons for
// every excluded rail, in filter-clause order.
func Filter(in FilterInput, rails []domain.RailConfig) ([]domain.RailConfig, []domain.FilterReason) {
	var eligible []domain.RailConfig
	var rejected []domain.FilterReason

	if in.ACC.Decision == domain.ACCFail {
		for _, rc := range rails {
			rejected = append(rejected, domain.FilterReason{RailName: rc.RailName, Reason: "ACC decision is FAIL"})
		}
		return nil, rejected
	}

	amount := in.Line.Amount
	for _, rc := range rails {
		if reason, ok := rejectReason(rc, in, amount); ok {
			rejected = append(rejected, domain.FilterReason{RailName: rc.RailName, Reason: reason})
			continue
		}
		eligible = append(eligible, rc)
	}
	return eligible, rejected
}

func rejectReason(rc domain.RailConfig, in FilterInput, amount domain.Amount) (string, bool) {
	if !rc.IsActive {
		return "rail inactive", true
	}
	if amount.LessThan(rc.MinAmount) || amount.GreaterThan(rc.MaxAmount) {
		return "amount outside rail bounds", true
	}
	// DailyLimit (not DailyLimitRemaining) is the tracked/untracked sentinel:
	// a rail can be legitimately driven to zero remaining by prior debits,
	// and that exhausted state must still be rejected here.
	if !rc.DailyLimit.IsZero() && amount.GreaterThan(rc.DailyLimitRemaining) {
		return "daily limit exhausted", true
	}
	if in.IsNewUser && !rc.NewUserLimit.IsZero() && amount.GreaterThan(rc.NewUserLimit) {
		return "exceeds new-user limit", true
	}
	if !inWorkingWindow(rc.WorkingHours, in.Now) {
		return "Outside working hours", true
	}
	if rc.RailType == domain.RailIntrabank && in.Line.Sender.IFSCPrefix() != in.Line.Receiver.IFSCPrefix() {
		return "sender and receiver not in same bank", true
	}
	return "", false
}

// inWorkingWindow handles the overnight case explicitly (start > end
// wraps across midnight), per spec.md §4.4.1.
func inWorkingWindow(wh domain.WorkingHours, now time.Time) bool {
	if len(wh.Weekdays) > 0 && !wh.Weekdays[now.Weekday()] {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	if wh.Start <= wh.End {
		if minutes < wh.Start || minutes > wh.End {
			return false
		}
		if minutes == wh.End && now.Second() > 0 {
			return false
		}
		return true
	}
	// overnight window, e.g. 22:00-06:00
	return minutes >= wh.Start || minutes <= wh.End
}

// RawFeatures is one rail's extracted feature vector before
// normalization (spec.md §4.4.2).
type RawFeatures struct {
	RailName string
	Values   map[string]float64
}

// ExtractInput bundles everything feature extraction reads beyond the
// static RailConfig.
type ExtractInput struct {
	Line               domain.Line
	ACC                domain.ACCDecision
	CriticPenaltyDecay map[string]float64 // railName -> decayed recent-failure penalty
	WindowBonus        map[string]float64 // railName -> load-balancing bonus
	Now                time.Time
}

func ExtractFeatures(rails []domain.RailConfig, in ExtractInput) []RawFeatures {
	out := make([]RawFeatures, 0, len(rails))
	for _, rc := range rails {
		workingHoursPenalty := 0.0
		if !inPreferredWindow(rc.WorkingHours, in.Now) {
			workingHoursPenalty = 0.3
		}
		out = append(out, RawFeatures{
			RailName: rc.RailName,
			Values: map[string]float64{
				FeatureETA:                 float64(rc.AvgETAMs),
				FeatureCost:                rc.CostBps,
				FeatureSuccessProb:         rc.SuccessProbability,
				FeatureCompliancePenalty:   in.ACC.CompliancePenalty,
				FeatureRiskScore:           in.ACC.RiskScore,
				FeatureCriticPenaltyDecay:  in.CriticPenaltyDecay[rc.RailName],
				FeatureWindowBonus:         in.WindowBonus[rc.RailName],
				FeatureAmountMatchBonus:    amountMatchBonus(rc.RailName, in.Line.Amount.Float64()),
				FeatureWorkingHoursPenalty: workingHoursPenalty,
				FeatureSettlementCertainty: rc.SettlementCertainty,
			},
		})
	}
	return out
}

// inPreferredWindow is a narrower, non-filtering window used only to
// compute working_hours_penalty (e.g. near a rail's cutoff); distinct
// from the hard eligibility window.
func inPreferredWindow(wh domain.WorkingHours, now time.Time) bool {
	minutes := now.Hour()*60 + now.Minute()
	buffer := 30
	return minutes >= wh.Start+buffer && minutes <= wh.End-buffer
}

// Normalize min-max normalizes each feature across the eligible rail
// set, inverting lower-is-better features so 1.0 is always best
// (spec.md §4.4.3). When max==min for a feature, every rail gets 0.5.
func Normalize(raw []RawFeatures) map[string]map[string]float64 {
	normalized := make(map[string]map[string]float64, len(raw))
	for _, r := range raw {
		normalized[r.RailName] = make(map[string]float64)
	}
	if len(raw) == 0 {
		return normalized
	}

	for feature := range raw[0].Values {
		min, max := math.Inf(1), math.Inf(-1)
		for _, r := range raw {
			v := r.Values[feature]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		for _, r := range raw {
			var n float64
			if max == min {
				n = 0.5
			} else {
				n = (r.Values[feature] - min) / (max - min)
				if lowerIsBetter[feature] {
					n = 1 - n
				}
			}
			normalized[r.RailName][feature] = n
		}
	}
	return normalized
}

// Score computes the weighted linear score for every rail and returns
// them ranked descending, with ties broken by lower eta_ms then by
// rail name ascending (spec.md §4.4.4-5).
func Score(raw []RawFeatures, normalized map[string]map[string]float64, weights Weights) []domain.RankedRail {
	ranked := make([]domain.RankedRail, 0, len(raw))
	etaByRail := make(map[string]float64, len(raw))
	for _, r := range raw {
		etaByRail[r.RailName] = r.Values[FeatureETA]
		score := weightedScore(normalized[r.RailName], weights)
		ranked = append(ranked, domain.RankedRail{RailName: r.RailName, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if etaByRail[ranked[i].RailName] != etaByRail[ranked[j].RailName] {
			return etaByRail[ranked[i].RailName] < etaByRail[ranked[j].RailName]
		}
		return ranked[i].RailName < ranked[j].RailName
	})
	return ranked
}

func weightedScore(normalized map[string]float64, weights Weights) float64 {
	var score float64
	for feature, value := range normalized {
		score += weights.orDefault(feature) * value
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// TopTerms returns the top-3 wᵢ·featureᵢ contributing terms for one
// rail's explainability snapshot (spec.md §4.4.6).
func TopTerms(normalized map[string]float64, weights Weights) []domain.WeightedTerm {
	terms := make([]domain.WeightedTerm, 0, len(normalized))
	for feature, value := range normalized {
		w := weights.orDefault(feature)
		terms = append(terms, domain.WeightedTerm{
			Feature: feature,
			Weight:  w,
			Value:   value,
			Term:    w * value,
		})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Term > terms[j].Term })
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return terms
}
