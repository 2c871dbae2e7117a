package querylayer

import (
	"testing"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

func mustAmount(t *testing.T, s string) domain.Amount {
	t.Helper()
	a, err := domain.NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}

func TestDescribeUnknownLineReturnsError(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	r := NewRetriever(relStore)

	if _, err := r.Describe(t.Context(), "no-such-line"); err == nil {
		t.Fatal("expected an error for a line that was never ingested")
	}
}

func TestDescribeEarlyLineHasNoDownstreamEvidence(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	r := NewRetriever(relStore)

	line := domain.Line{
		LineID:      "line-1",
		BatchID:     "batch-1",
		Amount:      mustAmount(t, "5000.00"),
		Currency:    "INR",
		PurposeCode: "VENDOR_PAYMENT",
		Receiver:    domain.Party{Name: "Acme Supplies"},
		Status:      domain.StatusInitialized,
	}
	if err := relStore.SaveLine(t.Context(), line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}

	resp, err := r.Describe(t.Context(), "line-1")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if resp.Narrative.ConfidenceScore != 0 {
		t.Errorf("expected zero confidence with no agent evidence, got %v", resp.Narrative.ConfidenceScore)
	}
	if len(resp.Narrative.RecommendedActions) != 1 || resp.Narrative.RecommendedActions[0].Action != "Manual Review" {
		t.Errorf("expected the default manual-review action, got %+v", resp.Narrative.RecommendedActions)
	}
}

func TestDescribeFailedLineComposesFailureNarrative(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	r := NewRetriever(relStore)

	line := domain.Line{
		LineID:      "line-2",
		BatchID:     "batch-1",
		Amount:      mustAmount(t, "250000.00"),
		Currency:    "INR",
		PurposeCode: "VENDOR_PAYMENT",
		Receiver:    domain.Party{Name: "Sanctioned Corp"},
		Status:      domain.StatusFailed,
	}
	if err := relStore.SaveLine(t.Context(), line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}
	acc := domain.ACCDecision{
		LineID:            "line-2",
		Decision:          domain.ACCFail,
		Reasons:           []string{"SANCTION"},
		CompliancePenalty: 90,
		RiskScore:         100,
		PolicyVersion:     "v1",
		EvidenceRefs:      []string{"watchlist-entry-42"},
		IssuedAt:          time.Unix(0, 0).UTC(),
	}
	if err := relStore.SaveACCDecision(t.Context(), acc); err != nil {
		t.Fatalf("SaveACCDecision: %v", err)
	}
	rca := domain.RCAResult{
		LineID: "line-2",
		RootCause: domain.RootCause{
			IssueCode:      "SANCTION",
			Source:         domain.RCASourceACC,
			Recommendation: "Escalate to compliance; counterparty is sanctions-listed.",
			Severity:       domain.RCACritical,
			Confidence:     0.9,
		},
	}
	if err := relStore.SaveRCAResult(t.Context(), rca); err != nil {
		t.Fatalf("SaveRCAResult: %v", err)
	}

	resp, err := r.Describe(t.Context(), "line-2")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if resp.Narrative.FailureReason == "" {
		t.Error("expected a non-empty failure reason")
	}
	if resp.Narrative.ConfidenceScore != 0.7 {
		t.Errorf("expected 0.3 (ACC) + 0.4 (RCA) = 0.7 confidence, got %v", resp.Narrative.ConfidenceScore)
	}
	if len(resp.Narrative.RecommendedActions) != 1 {
		t.Fatalf("expected one recommended action, got %+v", resp.Narrative.RecommendedActions)
	}
	if resp.Narrative.RecommendedActions[0].Priority != "High" {
		t.Errorf("expected a CRITICAL root cause to map to High priority, got %s", resp.Narrative.RecommendedActions[0].Priority)
	}
	if resp.Narrative.RecommendedActions[0].ResponsibleParty != "Compliance Team" {
		t.Errorf("expected an ACC-sourced root cause to route to the compliance team, got %s", resp.Narrative.RecommendedActions[0].ResponsibleParty)
	}
	if len(resp.EvidenceRefs) != 1 || resp.EvidenceRefs[0] != "watchlist-entry-42" {
		t.Errorf("expected the ACC evidence ref to surface, got %+v", resp.EvidenceRefs)
	}
}

func TestEvidenceRefsDeduplicatedAcrossAgents(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	r := NewRetriever(relStore)

	line := domain.Line{LineID: "line-3", BatchID: "batch-1", Amount: mustAmount(t, "100.00"), Currency: "INR"}
	if err := relStore.SaveLine(t.Context(), line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}
	acc := domain.ACCDecision{LineID: "line-3", Decision: domain.ACCPass, EvidenceRefs: []string{"ref-a", "ref-b"}}
	if err := relStore.SaveACCDecision(t.Context(), acc); err != nil {
		t.Fatalf("SaveACCDecision: %v", err)
	}
	crrak := domain.CRRAKReport{LineID: "line-3", ReportRef: "ref-a"}
	if err := relStore.SaveCRRAKReport(t.Context(), crrak); err != nil {
		t.Fatalf("SaveCRRAKReport: %v", err)
	}

	resp, err := r.Describe(t.Context(), "line-3")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(resp.EvidenceRefs) != 2 {
		t.Errorf("expected ref-a deduplicated across ACC and CRRAK, got %+v", resp.EvidenceRefs)
	}
}
