package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auditlog"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/compliance"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/config"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/crrak"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railexec"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railregistry"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/reconciliation"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/rootcause"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/scoring"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

type fixedExecClock struct{ t time.Time }

func (f fixedExecClock) Now() time.Time { return f.t }

// policyStub answers every ACC evaluation with a fixed allow/violations
// verdict, standing in for the external policy decision service.
func policyStub(allow bool, violations []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type response struct {
			Result struct {
				Allow      bool     `json:"allow"`
				Violations []string `json:"violations"`
			} `json:"result"`
		}
		var resp response
		resp.Result.Allow = allow
		resp.Result.Violations = violations
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func fullyWiredOrchestrator(t *testing.T, policyURL string) (*Orchestrator, store.RelationalStore) {
	t.Helper()
	relStore := store.NewMemoryRelationalStore()
	weekday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // Monday, noon

	registry := railregistry.NewRegistry(relStore, nil)
	if err := registry.Seed(context.Background(), []domain.RailConfig{
		{
			RailName:            "IFT",
			RailType:            domain.RailIntrabank,
			MinAmount:           mustAmount(t, "1.00"),
			MaxAmount:           mustAmount(t, "10000000.00"),
			WorkingHours:        domain.WorkingHours{Start: 0, End: 23 * 60 + 59},
			AvgETAMs:            500,
			SuccessProbability:  1,
			SettlementCertainty: 0.99,
			DailyLimit:          mustAmount(t, "100000000.00"),
			DailyLimitRemaining: mustAmount(t, "100000000.00"),
			IsActive:            true,
		},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	executor := railexec.New(true, 1, fixedExecClock{weekday})
	cascade := scoring.NewCascade(executor, relStore, registry)
	acc := compliance.NewEvaluator(policyURL, "v1", time.Second, relStore)
	arl := reconciliation.NewReconciler(relStore)
	rca := rootcause.NewAnalyzer(relStore)
	crrakComposer := crrak.NewComposer(relStore, nil)

	orch := New(Deps{
		RelStore: relStore,
		Audit:    auditlog.New(relStore),
		Rails:    registry,
		ACC:      acc,
		Cascade:  cascade,
		ARL:      arl,
		RCA:      rca,
		CRRAK:    crrakComposer,
		Cfg:      config.OrchestratorConfig{LineParallelism: 4, BatchParallelism: 2, RetryMax: 1, RetryBaseDelay: time.Millisecond},
		Tenant:   "test",
	})
	return orch, relStore
}

func mustAmount(t *testing.T, s string) domain.Amount {
	t.Helper()
	a, err := domain.NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}

func TestEndToEndIntrabankVendorPaymentCompletes(t *testing.T) {
	policy := policyStub(true, nil)
	defer policy.Close()
	orch, relStore := fullyWiredOrchestrator(t, policy.URL)

	batch := domain.Batch{BatchID: "batch-e2e-1", TenantID: "test", WorkflowID: "wf-1"}
	line := domain.Line{
		LineID:      "line-e2e-1",
		BatchID:     batch.BatchID,
		Amount:      mustAmount(t, "1000.00"),
		Currency:    "INR",
		PurposeCode: "VENDOR_PAYMENT",
		Sender:      domain.Party{Account: "sender-1", IFSC: "HDFC0001234"},
		Receiver:    domain.Party{Account: "receiver-1", IFSC: "HDFC0009999"},
	}

	if err := orch.StartBatch(context.Background(), batch, []domain.Line{line}); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}

	got, ok, err := relStore.GetLine(context.Background(), "line-e2e-1")
	if err != nil || !ok {
		t.Fatalf("GetLine: ok=%v err=%v", ok, err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}

	entries, err := relStore.ListLedgerEntriesByReference(context.Background(), batch.BatchID+":"+line.LineID)
	if err != nil {
		t.Fatalf("ListLedgerEntriesByReference: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly one DEBIT/CREDIT ledger pair, got %d entries", len(entries))
	}

	report, ok, err := relStore.GetCRRAKReport(context.Background(), "line-e2e-1")
	if err != nil || !ok {
		t.Fatalf("expected exactly one CRRAK report, ok=%v err=%v", ok, err)
	}
	if report.ComplianceStatus != domain.Compliant {
		t.Errorf("expected a COMPLIANT report for a clean line, got %s", report.ComplianceStatus)
	}
}

func TestEndToEndSanctionedBeneficiaryFailsWithRCA(t *testing.T) {
	policy := policyStub(false, []string{"SANCTION"})
	defer policy.Close()
	orch, relStore := fullyWiredOrchestrator(t, policy.URL)

	batch := domain.Batch{BatchID: "batch-e2e-2", TenantID: "test", WorkflowID: "wf-2"}
	line := domain.Line{
		LineID:      "line-e2e-2",
		BatchID:     batch.BatchID,
		Amount:      mustAmount(t, "1000.00"),
		Currency:    "INR",
		PurposeCode: "VENDOR_PAYMENT",
		Sender:      domain.Party{Account: "sender-2", IFSC: "HDFC0001234"},
		Receiver:    domain.Party{Account: "receiver-2", IFSC: "ICIC0005678"},
	}

	if err := orch.StartBatch(context.Background(), batch, []domain.Line{line}); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}

	got, ok, err := relStore.GetLine(context.Background(), "line-e2e-2")
	if err != nil || !ok {
		t.Fatalf("GetLine: ok=%v err=%v", ok, err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED for a sanctioned beneficiary, got %s", got.Status)
	}

	rcaResult, ok, err := relStore.GetRCAResult(context.Background(), "line-e2e-2")
	if err != nil || !ok {
		t.Fatalf("expected exactly one RCA result on FAILED, ok=%v err=%v", ok, err)
	}
	if rcaResult.RootCause.Source != domain.RCASourceACC {
		t.Errorf("expected RCA to attribute the failure to ACC, got %s", rcaResult.RootCause.Source)
	}

	report, ok, err := relStore.GetCRRAKReport(context.Background(), "line-e2e-2")
	if err != nil || !ok {
		t.Fatalf("expected exactly one CRRAK report, ok=%v err=%v", ok, err)
	}
	if report.ComplianceStatus == domain.Compliant {
		t.Error("expected a sanctioned line to not be reported COMPLIANT")
	}
}
