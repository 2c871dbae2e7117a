// Package querylayer answers "what happened to this transaction and
// why" by aggregating every agent's evidence for a line into one
// narrative response (spec.md §2's Query layer: "Cross-agent evidence
// retrieval + narrative composition").
//
// Grounded on the teacher corpus's original_source AgentDataRetriever
// /XAIAnalyzer (services/prompt_layer_service.py): that service fans
// out over HTTP to ACC/RCA/ARL/CRRAK/MCP, builds a context dict, then
// synthesizes failure_reason/detailed_analysis/recommended_actions/
// additional_notes/confidence_score from it. The fan-out here reads
// straight from the relational store instead of calling sibling
// services over HTTP, since every agent in this port is in-process;
// the aggregation-then-narrate shape is otherwise unchanged.
package querylayer

import (
	"context"
	"fmt"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

// Evidence bundles every agent's output for one line, however much of
// it exists yet (a line that failed early may have no PDR/ARL/CRRAK
// records at all).
type Evidence struct {
	Line   domain.Line
	Intent *domain.IntentResult
	ACC    *domain.ACCDecision
	PDR    *domain.PDRDecision
	ARL    *domain.ARLResult
	RCA    *domain.RCAResult
	CRRAK  *domain.CRRAKReport
}

// RecommendedAction is one actionable next step surfaced to an
// operator reviewing a transaction.
type RecommendedAction struct {
	Action           string `json:"action"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	EstimatedTime    string `json:"estimated_time"`
	ResponsibleParty string `json:"responsible_party"`
}

// Narrative is the synthesized, human-readable account of a line's
// journey through the pipeline.
type Narrative struct {
	FailureReason      string              `json:"failure_reason"`
	DetailedAnalysis   string              `json:"detailed_analysis"`
	RecommendedActions []RecommendedAction `json:"recommended_actions"`
	AdditionalNotes    string              `json:"additional_notes"`
	ConfidenceScore    float64             `json:"confidence_score"`
}

// Response is the Query layer's answer for one line.
type Response struct {
	LineID       string    `json:"line_id"`
	Narrative    Narrative `json:"narrative"`
	EvidenceRefs []string  `json:"evidence_refs"`
	Timestamp    time.Time `json:"timestamp"`
}

// Retriever aggregates cross-agent evidence and composes the
// narrative, reading the relational store every agent already
// persists its decisions to.
type Retriever struct {
	relStore store.RelationalStore
}

func NewRetriever(relStore store.RelationalStore) *Retriever {
	return &Retriever{relStore: relStore}
}

// Describe retrieves every agent record for lineID and composes a
// narrative response. It errors only if the line itself doesn't
// exist; missing downstream evidence (ACC/PDR/ARL/RCA/CRRAK) is
// expected for lines that haven't reached that stage yet.
func (r *Retriever) Describe(ctx context.Context, lineID string) (Response, error) {
	line, ok, err := r.relStore.GetLine(ctx, lineID)
	if err != nil {
		return Response{}, fmt.Errorf("get line %s: %w", lineID, err)
	}
	if !ok {
		return Response{}, fmt.Errorf("transaction not found: %s", lineID)
	}

	ev := Evidence{Line: line}
	if intentResult, ok, err := r.relStore.GetIntentResult(ctx, lineID); err == nil && ok {
		ev.Intent = &intentResult
	}
	if acc, ok, err := r.relStore.GetCurrentACCDecision(ctx, lineID); err == nil && ok {
		ev.ACC = &acc
	}
	if pdr, ok, err := r.relStore.GetPDRDecision(ctx, lineID); err == nil && ok {
		ev.PDR = &pdr
	}
	if arl, ok, err := r.relStore.GetARLResult(ctx, lineID); err == nil && ok {
		ev.ARL = &arl
	}
	if rca, ok, err := r.relStore.GetRCAResult(ctx, lineID); err == nil && ok {
		ev.RCA = &rca
	}
	if crrak, ok, err := r.relStore.GetCRRAKReport(ctx, lineID); err == nil && ok {
		ev.CRRAK = &crrak
	}

	return Response{
		LineID: lineID,
		Narrative: Narrative{
			FailureReason:      failureReason(ev),
			DetailedAnalysis:   detailedAnalysis(ev),
			RecommendedActions: recommendedActions(ev),
			AdditionalNotes:    additionalNotes(ev),
			ConfidenceScore:    confidenceScore(ev),
		},
		EvidenceRefs: evidenceRefs(ev),
		Timestamp:    time.Now().UTC(),
	}, nil
}

func failureReason(ev Evidence) string {
	if ev.ACC == nil {
		return fmt.Sprintf("Transaction %s status: %s, stage not yet reached compliance review.", ev.Line.LineID, ev.Line.Status)
	}
	if ev.ACC.Decision == domain.ACCFail {
		reason := "unknown reason"
		if len(ev.ACC.Reasons) > 0 {
			reason = joinReasons(ev.ACC.Reasons)
		}
		return fmt.Sprintf(
			"Transaction %s failed due to %s during compliance review on %s. Beneficiary %q was flagged for an amount of %s %s. Current status: %s.",
			ev.Line.LineID, reason, ev.ACC.IssuedAt.Format(time.RFC3339), ev.Line.Receiver.Name, ev.Line.Currency, ev.Line.Amount.String(), ev.Line.Status,
		)
	}
	return fmt.Sprintf(
		"Transaction %s: decision %s as of %s. Beneficiary %q, amount %s %s, status %s.",
		ev.Line.LineID, ev.ACC.Decision, ev.ACC.IssuedAt.Format(time.RFC3339), ev.Line.Receiver.Name, ev.Line.Currency, ev.Line.Amount.String(), ev.Line.Status,
	)
}

func detailedAnalysis(ev Evidence) string {
	var parts []string
	parts = append(parts,
		fmt.Sprintf("Transaction ID: %s", ev.Line.LineID),
		fmt.Sprintf("Beneficiary: %s", ev.Line.Receiver.Name),
		fmt.Sprintf("Amount: %s %s", ev.Line.Currency, ev.Line.Amount.String()),
		fmt.Sprintf("Status: %s", ev.Line.Status),
		fmt.Sprintf("Purpose: %s", ev.Line.PurposeCode),
	)
	if ev.Intent != nil {
		parts = append(parts, fmt.Sprintf("Classified intent: %s (%s match)", ev.Intent.Intent, ev.Intent.MatchKind))
	}
	if ev.ACC != nil {
		parts = append(parts, fmt.Sprintf("ACC decision: %s", ev.ACC.Decision))
		if len(ev.ACC.Reasons) > 0 {
			parts = append(parts, fmt.Sprintf("ACC reasons: %s", joinReasons(ev.ACC.Reasons)))
		}
	}
	if ev.PDR != nil {
		parts = append(parts, fmt.Sprintf("PDR primary rail: %s (score %.2f)", ev.PDR.PrimaryRail, ev.PDR.PrimaryScore))
		parts = append(parts, fmt.Sprintf("PDR execution status: %s, attempts: %d", ev.PDR.FinalStatus, ev.PDR.AttemptCount))
		if ev.PDR.FinalUTR != "" {
			parts = append(parts, fmt.Sprintf("Final UTR: %s", ev.PDR.FinalUTR))
		}
	}
	if ev.RCA != nil {
		parts = append(parts,
			fmt.Sprintf("Root cause: %s", ev.RCA.RootCause.IssueCode),
			fmt.Sprintf("Fault source: %s", ev.RCA.RootCause.Source),
			fmt.Sprintf("Severity: %s, confidence: %.2f", ev.RCA.RootCause.Severity, ev.RCA.RootCause.Confidence),
		)
	}
	if ev.ARL != nil {
		parts = append(parts, fmt.Sprintf("Reconciliation state: %s (%d/%d matched)", ev.ARL.State, ev.ARL.MatchedCount, ev.ARL.TotalCount))
		if len(ev.ARL.Discrepancies) > 0 {
			parts = append(parts, fmt.Sprintf("Reconciliation discrepancies: %d found", len(ev.ARL.Discrepancies)))
		}
	}
	if ev.CRRAK != nil {
		parts = append(parts, fmt.Sprintf("Compliance status: %s, score: %.1f", ev.CRRAK.ComplianceStatus, ev.CRRAK.ComplianceScore))
	}
	return joinPipe(parts)
}

func recommendedActions(ev Evidence) []RecommendedAction {
	if ev.RCA == nil || ev.RCA.RootCause.Recommendation == "" {
		return []RecommendedAction{{
			Action:           "Manual Review",
			Description:      "Conduct manual review of transaction details.",
			Priority:         "High",
			EstimatedTime:    "2-3 business days",
			ResponsibleParty: "Operations Team",
		}}
	}
	priority := "Medium"
	switch ev.RCA.RootCause.Severity {
	case domain.RCACritical, domain.RCAHigh:
		priority = "High"
	case domain.RCALow:
		priority = "Low"
	}
	responsible := "Operations Team"
	if ev.RCA.RootCause.Source == domain.RCASourceACC {
		responsible = "Compliance Team"
	}
	return []RecommendedAction{{
		Action:           "Action 1",
		Description:      ev.RCA.RootCause.Recommendation,
		Priority:         priority,
		EstimatedTime:    "1 business day",
		ResponsibleParty: responsible,
	}}
}

func additionalNotes(ev Evidence) string {
	var notes []string
	notes = append(notes, fmt.Sprintf("Transaction %s processed for batch %s.", ev.Line.LineID, ev.Line.BatchID))
	if ev.ACC != nil {
		if ev.ACC.PolicyVersion != "" {
			notes = append(notes, fmt.Sprintf("Compliance policy version: %s.", ev.ACC.PolicyVersion))
		}
		switch ev.ACC.Decision {
		case domain.ACCFail:
			notes = append(notes, "ACC flagged transaction for compliance issues.")
		case domain.ACCPass:
			notes = append(notes, "ACC cleared transaction for compliance.")
		}
	}
	if ev.RCA != nil && ev.RCA.RootCause.Source != "" {
		notes = append(notes, fmt.Sprintf("Fault source identified: %s.", ev.RCA.RootCause.Source))
	}
	if ev.ARL != nil {
		notes = append(notes, fmt.Sprintf("Reconciliation status: %s.", ev.ARL.State))
	}
	return joinPipe(notes)
}

// confidenceScore mirrors the teacher corpus's weighted evidence-count
// heuristic: more corroborating agent records raise confidence in the
// narrative, capped at 1.
func confidenceScore(ev Evidence) float64 {
	score := 0.0
	if ev.ACC != nil {
		score += 0.3
	}
	if ev.RCA != nil {
		score += 0.4
	}
	if ev.ARL != nil {
		score += 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}

func evidenceRefs(ev Evidence) []string {
	var refs []string
	if ev.ACC != nil {
		refs = append(refs, ev.ACC.EvidenceRefs...)
	}
	if ev.CRRAK != nil && ev.CRRAK.ReportRef != "" {
		refs = append(refs, ev.CRRAK.ReportRef)
	}
	return dedupe(refs)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func joinReasons(reasons []string) string {
	return joinWith(reasons, ", ")
}

func joinPipe(parts []string) string {
	if len(parts) == 0 {
		return "No analysis available."
	}
	return joinWith(parts, " | ")
}

func joinWith(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
