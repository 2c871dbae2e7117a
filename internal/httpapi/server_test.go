package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auditlog"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auth"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/config"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/orchestrator"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	relStore := store.NewMemoryRelationalStore()
	secret := []byte("httpapi-test-secret")
	orch := orchestrator.New(orchestrator.Deps{
		RelStore:  relStore,
		Audit:     auditlog.New(relStore),
		Cfg:       config.OrchestratorConfig{LineParallelism: 4, BatchParallelism: 2},
		JWTSecret: secret,
		Tenant:    "test",
	})

	hash, err := auth.HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	operators := map[string]auth.Operator{
		"admin": {ID: "op_admin", Username: "admin", PasswordHash: hash, Role: "admin"},
	}
	return NewServer(orch, relStore, "test", secret, operators, nil)
}

func TestHandleLoginSuccess(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "changeme"})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Error("expected a non-empty token")
	}
}

func TestHandleLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleUploadBatchRejectsUnsupportedContentType(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/batches/upload", bytes.NewReader([]byte("irrelevant")))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleUploadBatchRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/batches/upload", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetTransactionNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/transactions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAgentsReturnsIdleBoardInitially(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var board map[string]struct {
		Invocations int64 `json:"invocations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for name, st := range board {
		if st.Invocations != 0 {
			t.Errorf("expected no invocations for %s before any batch, got %d", name, st.Invocations)
		}
	}
}

func TestHandleWsStatusUnavailableWithoutHub(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/ws/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no status hub is configured, got %d", rec.Code)
	}
}
