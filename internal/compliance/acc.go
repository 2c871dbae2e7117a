// Package compliance implements the Compliance Adapter (ACC) of
// spec.md §4.3: it bundles per-counterparty verifications into a
// request to an external policy decision service and translates the
// {allow, violations[]} answer into a persisted ACCDecision.
//
// Structured as a service-over-repository pair, grounded on the
// teacher's compliance.ComplianceSystem/KYCAMLService shape, with the
// KYC provider call replaced by the spec's policy evaluator contract.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

// Verification is one per-counterparty check bundled into the policy
// evaluator request (PAN, Aadhaar-proxy, GSTIN, bank-account-name-match).
type Verification struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type policyRequest struct {
	PolicyVersion string              `json:"policy_version"`
	Transaction   policyTransaction   `json:"transaction"`
	Verifications []Verification      `json:"verifications"`
}

type policyTransaction struct {
	LineID      string `json:"line_id"`
	Amount      string `json:"amount"`
	PurposeCode string `json:"purpose_code"`
	Sender      string `json:"sender_account"`
	Receiver    string `json:"receiver_account"`
}

type policyResponse struct {
	Result struct {
		Allow      bool     `json:"allow"`
		Violations []string `json:"violations"`
	} `json:"result"`
}

var criticalViolations = map[string]bool{
	"SANCTION":            true,
	"LIMIT_EXCEEDED":      true,
	"INVALID_BENEFICIARY": true,
}

// per-code weights are fixed so compliance_penalty/risk_score are
// reproducible from the violation list alone (spec.md §4.3), on the
// documented 0-100 scale.
var violationPenalty = map[string]float64{
	"SANCTION":            90,
	"LIMIT_EXCEEDED":      60,
	"INVALID_BENEFICIARY": 50,
	"KYC_UNVERIFIED":      30,
	"POLICY_UNAVAILABLE":  40,
}

var violationRisk = map[string]float64{
	"SANCTION":            100,
	"LIMIT_EXCEEDED":      70,
	"INVALID_BENEFICIARY": 60,
	"KYC_UNVERIFIED":      40,
	"POLICY_UNAVAILABLE":  50,
}

// Evaluator calls the external policy decision service and persists
// the resulting ACCDecision.
type Evaluator struct {
	httpClient    *http.Client
	policyURL     string
	policyVersion string
	relStore      store.RelationalStore
}

func NewEvaluator(policyURL, policyVersion string, timeout time.Duration, relStore store.RelationalStore) *Evaluator {
	return &Evaluator{
		httpClient:    &http.Client{Timeout: timeout},
		policyURL:     policyURL,
		policyVersion: policyVersion,
		relStore:      relStore,
	}
}

// Evaluate runs one compliance check for line and persists the
// resulting decision as the current one for that line.
func (e *Evaluator) Evaluate(ctx context.Context, line domain.Line, verifications []Verification) (domain.ACCDecision, error) {
	req := policyRequest{
		PolicyVersion: e.policyVersion,
		Transaction: policyTransaction{
			LineID:      line.LineID,
			Amount:      line.Amount.String(),
			PurposeCode: line.PurposeCode,
			Sender:      line.Sender.Account,
			Receiver:    line.Receiver.Account,
		},
		Verifications: verifications,
	}

	resp, err := e.callPolicyEvaluator(ctx, req)
	decision := buildDecision(line.LineID, e.policyVersion, resp)
	if err != nil {
		decision = buildDecision(line.LineID, e.policyVersion, policyUnavailableResponse())
	}

	if saveErr := e.relStore.SaveACCDecision(ctx, decision); saveErr != nil {
		return domain.ACCDecision{}, fmt.Errorf("persist acc decision for %s: %w", line.LineID, saveErr)
	}
	return decision, nil
}

func (e *Evaluator) callPolicyEvaluator(ctx context.Context, req policyRequest) (policyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return policyResponse{}, fmt.Errorf("marshal policy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.policyURL, bytes.NewReader(body))
	if err != nil {
		return policyResponse{}, fmt.Errorf("build policy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return policyResponse{}, fmt.Errorf("call policy evaluator: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return policyResponse{}, fmt.Errorf("policy evaluator returned status %d", httpResp.StatusCode)
	}

	var resp policyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return policyResponse{}, fmt.Errorf("decode policy response: %w", err)
	}
	return resp, nil
}

// policyUnavailableResponse is the synthetic denial substituted when
// the policy evaluator errors or responds non-200 (spec.md §4.3).
func policyUnavailableResponse() policyResponse {
	var r policyResponse
	r.Result.Allow = false
	r.Result.Violations = []string{"POLICY_UNAVAILABLE"}
	return r
}

func buildDecision(lineID, policyVersion string, resp policyResponse) domain.ACCDecision {
	verdict := domain.ACCPass
	if !resp.Result.Allow {
		verdict = domain.ACCHold
		for _, v := range resp.Result.Violations {
			if criticalViolations[v] {
				verdict = domain.ACCFail
				break
			}
		}
	}

	var penalty, risk float64
	for _, v := range resp.Result.Violations {
		penalty += violationPenalty[v]
		risk += violationRisk[v]
	}
	if penalty > 100 {
		penalty = 100
	}
	if risk > 100 {
		risk = 100
	}

	evidenceRefs := make([]string, 0, len(resp.Result.Violations))
	for _, v := range resp.Result.Violations {
		evidenceRefs = append(evidenceRefs, "violation:"+v)
	}

	return domain.ACCDecision{
		LineID:            lineID,
		Decision:          verdict,
		PolicyVersion:     policyVersion,
		Reasons:           resp.Result.Violations,
		EvidenceRefs:      evidenceRefs,
		CompliancePenalty: penalty,
		RiskScore:         risk,
		IssuedAt:          time.Now().UTC(),
		Current:           true,
	}
}
