package rootcause

import (
	"testing"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

func TestAnalyzeMatchesFixedIssueCode(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	a := NewAnalyzer(relStore)

	res, err := a.Analyze(t.Context(), Evidence{
		LineID:      "line-1",
		IssueCode:   "SANCTIONED",
		PrimaryRail: "UPI",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RootCause.Source != domain.RCASourceACC {
		t.Errorf("expected ACC source for a sanctions hit, got %s", res.RootCause.Source)
	}
	if res.RootCause.Severity != domain.RCACritical {
		t.Errorf("expected CRITICAL severity, got %s", res.RootCause.Severity)
	}
}

func TestAnalyzeFallsBackToChannelGenericWhenCodeUnknown(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	a := NewAnalyzer(relStore)

	res, err := a.Analyze(t.Context(), Evidence{
		LineID:      "line-2",
		IssueCode:   "SOME_UNMAPPED_CODE",
		PrimaryRail: "RTGS",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RootCause.Severity != domain.RCAHigh {
		t.Errorf("expected the RTGS generic template (HIGH), got %s", res.RootCause.Severity)
	}
	if res.AnalysisDetails["matched_fixed_mapping"] != false {
		t.Error("expected matched_fixed_mapping=false for an unmapped code")
	}
}

func TestAnalyzeFallsBackToDefaultGenericForUnknownChannel(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	a := NewAnalyzer(relStore)

	res, err := a.Analyze(t.Context(), Evidence{
		LineID:      "line-3",
		IssueCode:   "",
		PrimaryRail: "SOME_FUTURE_RAIL",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RootCause.IssueCode != "UNKNOWN" {
		t.Errorf("expected IssueCode UNKNOWN when none observed, got %s", res.RootCause.IssueCode)
	}
	if res.RootCause.Source != domain.RCASourceSystem {
		t.Errorf("expected the default generic template, got %s", res.RootCause.Source)
	}
}

func TestIssueCodeFromACCViolationsPrefersMostSevere(t *testing.T) {
	code := IssueCodeFromACCViolations([]string{"KYC_UNVERIFIED", "SANCTION", "LIMIT_EXCEEDED"})
	if code != "SANCTION" {
		t.Errorf("expected SANCTION to take priority, got %s", code)
	}
}

func TestIssueCodeFromACCViolationsFallsBackToFirstReason(t *testing.T) {
	code := IssueCodeFromACCViolations([]string{"SOME_UNLISTED_VIOLATION"})
	if code != "SOME_UNLISTED_VIOLATION" {
		t.Errorf("expected the sole unlisted violation back, got %s", code)
	}
}

func TestIssueCodeFromACCViolationsEmptyReturnsEmpty(t *testing.T) {
	if code := IssueCodeFromACCViolations(nil); code != "" {
		t.Errorf("expected empty issue code for no violations, got %s", code)
	}
}

func TestIssueCodeFromPDRReasonsMapsKnownReason(t *testing.T) {
	code := IssueCodeFromPDRReasons([]domain.FilterReason{
		{RailName: "IMPS", Reason: "exceeds new-user limit"},
		{RailName: "NEFT", Reason: "daily limit exhausted"},
	})
	if code != "NEW_USER_LIMIT" {
		t.Errorf("expected the first matched reason's code, got %s", code)
	}
}

func TestAnalyzeConfidenceRisesWithEvidenceAndVerbatimMatch(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	a := NewAnalyzer(relStore)

	bare, err := a.Analyze(t.Context(), Evidence{LineID: "line-4", IssueCode: "BANK_UNAVAILABLE", PrimaryRail: "NEFT"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if bare.RootCause.Confidence != 0.5 {
		t.Errorf("expected baseline confidence 0.5 with no corroborating evidence, got %v", bare.RootCause.Confidence)
	}

	corroborated, err := a.Analyze(t.Context(), Evidence{
		LineID: "line-5", IssueCode: "BANK_UNAVAILABLE", PrimaryRail: "NEFT",
		HasPDR: true, HasACC: true, HasInvoice: true,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if corroborated.RootCause.Confidence <= bare.RootCause.Confidence {
		t.Errorf("expected corroborating evidence to raise confidence above %v, got %v", bare.RootCause.Confidence, corroborated.RootCause.Confidence)
	}

	verbatim, err := a.Analyze(t.Context(), Evidence{
		LineID: "line-6", IssueCode: "BANK_UNAVAILABLE", PrimaryRail: "NEFT",
		PDRIssues: []string{"BANK_UNAVAILABLE"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verbatim.RootCause.Confidence != 0.9 {
		t.Errorf("expected a verbatim PDR-issue match to pin confidence at 0.9, got %v", verbatim.RootCause.Confidence)
	}
}
