package orchestrator

import (
	"sync"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/metrics"
)

// AgentName identifies one of the six pipeline agents for status
// reporting (spec.md §4, supplemented rolling-error-counter feature).
type AgentName string

const (
	AgentMCP   AgentName = "MCP"
	AgentACC   AgentName = "ACC"
	AgentPDR   AgentName = "PDR"
	AgentARL   AgentName = "ARL"
	AgentRCA   AgentName = "RCA"
	AgentCRRAK AgentName = "CRRAK"
)

// AgentStatus tracks a rolling error counter per agent, supplementing
// spec.md's agent model with the original implementation's
// liveness/error-rate surface (SPEC_FULL.md Supplemented Features).
type AgentStatus struct {
	Name          AgentName `json:"name"`
	Invocations   int64     `json:"invocations"`
	Errors        int64     `json:"errors"`
	LastError     string    `json:"last_error,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
}

type agentStatusBoard struct {
	mu     sync.RWMutex
	status map[AgentName]*AgentStatus
}

func newAgentStatusBoard() *agentStatusBoard {
	b := &agentStatusBoard{status: make(map[AgentName]*AgentStatus)}
	for _, name := range []AgentName{AgentMCP, AgentACC, AgentPDR, AgentARL, AgentRCA, AgentCRRAK} {
		b.status[name] = &AgentStatus{Name: name}
	}
	return b
}

func (b *agentStatusBoard) recordSuccess(name AgentName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.status[name]
	s.Invocations++
	s.LastActivity = time.Now().UTC()
	metrics.RecordAgentInvocation(string(name), "success")
}

func (b *agentStatusBoard) recordError(name AgentName, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.status[name]
	s.Invocations++
	s.Errors++
	s.LastError = err.Error()
	s.LastActivity = time.Now().UTC()
	metrics.RecordAgentInvocation(string(name), "error")
}

func (b *agentStatusBoard) snapshot() map[AgentName]AgentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[AgentName]AgentStatus, len(b.status))
	for name, s := range b.status {
		out[name] = *s
	}
	return out
}

// WorkflowStatus summarizes a batch's progress by line status count,
// served by GetWorkflowStatus (spec.md §4.1's external interface).
type WorkflowStatus struct {
	WorkflowID string         `json:"workflow_id"`
	BatchID    string         `json:"batch_id"`
	LineCount  int            `json:"line_count"`
	ByStatus   map[string]int `json:"by_status"`
	Completed  bool           `json:"completed"`
}

// OperatorOverride is the signed event that reopens a HOLD line back
// into ROUTING (SPEC_FULL.md Open Question resolution).
type OperatorOverride struct {
	LineID    string `json:"line_id"`
	Actor     string `json:"actor"`
	Token     string `json:"token"` // JWT, verified against the configured operator secret
}

// IngestEvent is one inbound batch-lifecycle event keyed by
// (WorkflowID, EventType, LineID, Seq) (spec.md §5). No handler in this
// package consumes it; overrides are applied through HandleOverride.
type IngestEvent struct {
	WorkflowID string
	EventType  string
	LineID     string
	Seq        int64
	Override   *OperatorOverride
}
