package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auditlog"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auth"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/config"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, store.RelationalStore, []byte) {
	t.Helper()
	relStore := store.NewMemoryRelationalStore()
	secret := []byte("override-test-secret")
	orch := New(Deps{
		RelStore: relStore,
		Audit:    auditlog.New(relStore),
		Cfg:      config.OrchestratorConfig{LineParallelism: 4, BatchParallelism: 2},
		JWTSecret: secret,
		Tenant:    "test",
	})
	return orch, relStore, secret
}

func TestHandleOverrideTransitionsHoldToRouting(t *testing.T) {
	orch, relStore, secret := newTestOrchestrator(t)
	ctx := context.Background()

	line := domain.Line{LineID: "line-1", BatchID: "batch-1", Status: domain.StatusHold}
	if err := relStore.SaveLine(ctx, line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}

	token, err := auth.GenerateToken(auth.Operator{ID: "op1", Username: "jane", Role: "compliance_operator"}, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if err := orch.HandleOverride(ctx, OperatorOverride{LineID: "line-1", Actor: "jane", Token: token}); err != nil {
		t.Fatalf("HandleOverride: %v", err)
	}

	got, ok, err := relStore.GetLine(ctx, "line-1")
	if err != nil || !ok {
		t.Fatalf("GetLine: ok=%v err=%v", ok, err)
	}
	if got.Status != domain.StatusRouting {
		t.Fatalf("expected line to transition to ROUTING, got %s", got.Status)
	}
}

func TestHandleOverrideIsIdempotent(t *testing.T) {
	orch, relStore, secret := newTestOrchestrator(t)
	ctx := context.Background()

	line := domain.Line{LineID: "line-2", BatchID: "batch-1", Status: domain.StatusHold}
	if err := relStore.SaveLine(ctx, line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}

	token, err := auth.GenerateToken(auth.Operator{ID: "op1", Username: "jane", Role: "admin"}, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	override := OperatorOverride{LineID: "line-2", Actor: "jane", Token: token}

	if err := orch.HandleOverride(ctx, override); err != nil {
		t.Fatalf("first override: %v", err)
	}
	events, err := relStore.ListAuditEvents(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	firstCount := len(events)

	// Second override on a line no longer in HOLD must be a no-op: no
	// new audit event, no error, status stays ROUTING.
	if err := orch.HandleOverride(ctx, override); err != nil {
		t.Fatalf("duplicate override should be a no-op, got error: %v", err)
	}
	events, err = relStore.ListAuditEvents(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if len(events) != firstCount {
		t.Fatalf("duplicate override must not append a new audit event: before=%d after=%d", firstCount, len(events))
	}
}

func TestHandleOverrideRejectsUnauthorizedRole(t *testing.T) {
	orch, relStore, secret := newTestOrchestrator(t)
	ctx := context.Background()

	line := domain.Line{LineID: "line-3", BatchID: "batch-1", Status: domain.StatusHold}
	if err := relStore.SaveLine(ctx, line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}

	token, err := auth.GenerateToken(auth.Operator{ID: "op1", Username: "bob", Role: "viewer"}, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if err := orch.HandleOverride(ctx, OperatorOverride{LineID: "line-3", Actor: "bob", Token: token}); err == nil {
		t.Fatal("expected an error for an unauthorized role")
	}

	got, _, _ := relStore.GetLine(ctx, "line-3")
	if got.Status != domain.StatusHold {
		t.Fatalf("line status must not change on unauthorized override, got %s", got.Status)
	}
}

func TestHandleOverrideRejectsInvalidToken(t *testing.T) {
	orch, relStore, _ := newTestOrchestrator(t)
	ctx := context.Background()

	line := domain.Line{LineID: "line-4", BatchID: "batch-1", Status: domain.StatusHold}
	if err := relStore.SaveLine(ctx, line); err != nil {
		t.Fatalf("SaveLine: %v", err)
	}

	if err := orch.HandleOverride(ctx, OperatorOverride{LineID: "line-4", Actor: "mallory", Token: "not-a-jwt"}); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}
