package compliance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

func TestBuildDecisionPassWhenAllowed(t *testing.T) {
	var resp policyResponse
	resp.Result.Allow = true

	d := buildDecision("line-1", "v1", resp)
	if d.Decision != domain.ACCPass {
		t.Fatalf("expected PASS, got %s", d.Decision)
	}
	if d.CompliancePenalty != 0 || d.RiskScore != 0 {
		t.Errorf("expected zero penalty/risk on PASS, got %v/%v", d.CompliancePenalty, d.RiskScore)
	}
}

func TestBuildDecisionFailsOnCriticalViolation(t *testing.T) {
	var resp policyResponse
	resp.Result.Allow = false
	resp.Result.Violations = []string{"SANCTION"}

	d := buildDecision("line-1", "v1", resp)
	if d.Decision != domain.ACCFail {
		t.Fatalf("expected FAIL for a sanctioned beneficiary, got %s", d.Decision)
	}
	if d.RiskScore != 100.0 {
		t.Errorf("expected risk score 100.0 for SANCTION, got %v", d.RiskScore)
	}
}

func TestBuildDecisionHoldsOnNonCriticalViolation(t *testing.T) {
	var resp policyResponse
	resp.Result.Allow = false
	resp.Result.Violations = []string{"KYC_UNVERIFIED"}

	d := buildDecision("line-1", "v1", resp)
	if d.Decision != domain.ACCHold {
		t.Fatalf("expected HOLD for a non-critical violation, got %s", d.Decision)
	}
}

func TestBuildDecisionClampsCombinedPenaltyAndRisk(t *testing.T) {
	var resp policyResponse
	resp.Result.Allow = false
	resp.Result.Violations = []string{"SANCTION", "LIMIT_EXCEEDED", "INVALID_BENEFICIARY"}

	d := buildDecision("line-1", "v1", resp)
	if d.CompliancePenalty != 100 {
		t.Errorf("expected penalty clamped to 100, got %v", d.CompliancePenalty)
	}
	if d.RiskScore != 100 {
		t.Errorf("expected risk clamped to 100, got %v", d.RiskScore)
	}
}

func TestPolicyUnavailableResponseIsADenial(t *testing.T) {
	resp := policyUnavailableResponse()
	if resp.Result.Allow {
		t.Fatal("expected an unavailable policy evaluator to deny")
	}
	if len(resp.Result.Violations) != 1 || resp.Result.Violations[0] != "POLICY_UNAVAILABLE" {
		t.Errorf("expected a single POLICY_UNAVAILABLE violation, got %v", resp.Result.Violations)
	}
}

func TestEvaluateFailsClosedWhenPolicyServiceUnreachable(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	// Deliberately point at a closed server so the call errors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	eval := NewEvaluator(url, "v1", 200*time.Millisecond, relStore)
	line := domain.Line{LineID: "line-unreachable", Amount: domain.NewAmountFromFloat(1000)}

	decision, err := eval.Evaluate(t.Context(), line, nil)
	if err != nil {
		t.Fatalf("Evaluate should fail closed, not error: %v", err)
	}
	if decision.Decision != domain.ACCHold {
		t.Fatalf("expected HOLD when the policy evaluator is unreachable, got %s", decision.Decision)
	}
}

func TestEvaluatePersistsDecisionFromPolicyService(t *testing.T) {
	relStore := store.NewMemoryRelationalStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp policyResponse
		resp.Result.Allow = true
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	eval := NewEvaluator(server.URL, "v1", time.Second, relStore)
	line := domain.Line{LineID: "line-ok", Amount: domain.NewAmountFromFloat(1000)}

	decision, err := eval.Evaluate(t.Context(), line, []Verification{{Kind: "PAN", Status: "VERIFIED"}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Decision != domain.ACCPass {
		t.Fatalf("expected PASS, got %s", decision.Decision)
	}

	current, ok, err := relStore.GetCurrentACCDecision(t.Context(), "line-ok")
	if err != nil || !ok {
		t.Fatalf("expected a persisted current decision: ok=%v err=%v", ok, err)
	}
	if current.Decision != domain.ACCPass {
		t.Errorf("expected persisted decision PASS, got %s", current.Decision)
	}
}
