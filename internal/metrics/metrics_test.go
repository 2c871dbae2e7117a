package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecordersDoNotPanic(t *testing.T) {
	RecordLineCompletion("COMPLETED", 125.5)
	RecordAgentInvocation("ACC", "pass")
	RecordRailAttempt("UPI", "success", 2100)
	SetCircuitBreakerState("UPI", 0)
	SetActiveLines(3)
}

func TestHandlerServesPrometheusExposition(t *testing.T) {
	RecordLineCompletion("COMPLETED", 10)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a non-empty metrics exposition body")
	}
}

func TestAPIMiddlewarePassesStatusCodeThrough(t *testing.T) {
	handler := APIMiddleware("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 to pass through, got %d", rec.Code)
	}
}
