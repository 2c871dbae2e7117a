// Package httpapi exposes the orchestrator over HTTP using
// gorilla/mux, mirroring the teacher's handlers.* router registration
// style (one handler struct per concern, wired onto a shared mux.Router
// in Server.Router) but serving batch upload / workflow status / agent
// health / transaction lookup instead of trading endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auth"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/idgen"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/ingest"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/metrics"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/middleware"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/orchestrator"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/querylayer"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/wsstatus"
)

// errorEnvelope is the uniform error body for every failed request
// (spec.md §6 external interfaces).
type errorEnvelope struct {
	Error      string    `json:"error"`
	StatusCode int       `json:"status_code"`
	TS         time.Time `json:"ts"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: msg, StatusCode: status, TS: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] encode response: %v", err)
	}
}

// Server bundles the orchestrator and stores needed to serve the
// external API.
type Server struct {
	orch      *orchestrator.Orchestrator
	relStore  store.RelationalStore
	retriever *querylayer.Retriever
	tenant    string
	jwtSecret []byte
	operators map[string]auth.Operator // username -> operator, seeded at startup
	statusHub *wsstatus.Hub
	limiter   *middleware.RateLimiter
}

func NewServer(orch *orchestrator.Orchestrator, relStore store.RelationalStore, tenant string, jwtSecret []byte, operators map[string]auth.Operator, statusHub *wsstatus.Hub) *Server {
	return &Server{
		orch:      orch,
		relStore:  relStore,
		retriever: querylayer.NewRetriever(relStore),
		tenant:    tenant,
		jwtSecret: jwtSecret,
		operators: operators,
		statusHub: statusHub,
		limiter:   middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
	}
}

// Router builds the mux.Router exposing every endpoint of spec.md's
// external interface section, with per-client rate limiting applied
// ahead of every handler.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.limiter.Middleware)
	r.HandleFunc("/batches/upload", metrics.APIMiddleware("/batches/upload", s.handleUploadBatch)).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{id}/status", metrics.APIMiddleware("/workflows/status", s.handleWorkflowStatus)).Methods(http.MethodGet)
	r.HandleFunc("/agents", metrics.APIMiddleware("/agents", s.handleAgents)).Methods(http.MethodGet)
	r.HandleFunc("/transactions", metrics.APIMiddleware("/transactions", s.handleListTransactions)).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", metrics.APIMiddleware("/transactions/id", s.handleGetTransaction)).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}/narrative", metrics.APIMiddleware("/transactions/id/narrative", s.handleGetTransactionNarrative)).Methods(http.MethodGet)
	r.HandleFunc("/lines/{id}/override", metrics.APIMiddleware("/lines/override", s.handleOverride)).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", metrics.APIMiddleware("/auth/login", s.handleLogin)).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws/status", s.handleWsStatus).Methods(http.MethodGet)
	return r
}

func (s *Server) handleWsStatus(w http.ResponseWriter, req *http.Request) {
	if s.statusHub == nil {
		writeError(w, http.StatusServiceUnavailable, "live status broadcasting is not configured")
		return
	}
	wsstatus.ServeWs(s.statusHub, w, req)
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, req *http.Request) {
	contentType := req.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	batchID := idgen.BatchID()
	workflowID := idgen.WorkflowID()

	var result ingest.Result
	switch {
	case strings.Contains(mediaType, "csv"):
		result, err = ingest.ParseCSV(batchID, req.Body)
	case strings.Contains(mediaType, "json"):
		result, err = ingest.ParseJSON(batchID, req.Body)
	default:
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported content-type %q; use text/csv or application/json", contentType))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch := domain.Batch{
		BatchID:    batchID,
		TenantID:   s.tenant,
		Source:     domain.SourceFrontend,
		UploadTS:   time.Now().UTC(),
		LineCount:  len(result.Lines),
		WorkflowID: workflowID,
	}

	go func() {
		ctx := req.Context()
		if err := s.orch.StartBatch(ctx, batch, result.Lines); err != nil {
			log.Printf("[httpapi] batch %s finished with error: %v", batchID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id":        batchID,
		"workflow_id":     workflowID,
		"accepted_lines":  len(result.Lines),
		"rejected_lines":  result.Rejected,
	})
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	status, err := s.orch.GetWorkflowStatus(req.Context(), id, id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetAgentStatus())
}

func (s *Server) handleListTransactions(w http.ResponseWriter, req *http.Request) {
	batchID := req.URL.Query().Get("batch_id")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "batch_id query parameter is required")
		return
	}
	lines, err := s.relStore.ListLinesByBatch(req.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	line, ok, err := s.relStore.GetLine(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// handleGetTransactionNarrative aggregates every agent's evidence for
// a line into the cross-agent narrative (spec.md §2's Query layer):
// why it failed or passed, what was checked, and what to do next.
func (s *Server) handleGetTransactionNarrative(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	resp, err := s.retriever.Describe(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type overrideRequest struct {
	Actor string `json:"actor"`
	Token string `json:"token"`
}

func (s *Server) handleOverride(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	var body overrideRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed override request: "+err.Error())
		return
	}
	err := s.orch.HandleOverride(req.Context(), orchestrator.OperatorOverride{LineID: id, Actor: body.Actor, Token: body.Token})
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"line_id": id, "status": "ROUTING"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request: "+err.Error())
		return
	}
	op, ok := s.operators[body.Username]
	if !ok || !auth.CheckPassword(op.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.GenerateToken(op, s.jwtSecret, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": op.Role})
}
