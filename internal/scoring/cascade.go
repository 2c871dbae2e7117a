package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/metrics"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railexec"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

// Debiter reserves amount against a rail's remaining daily limit.
type Debiter interface {
	TryDebit(ctx context.Context, rail string, amount domain.Amount) (bool, error)
}

// Cascade runs the PDR execution cascade of spec.md §4.4 "Execution
// cascade": try primary, fall back in ranked order on failure,
// recording RailPerformance per attempt (the history CriticPenaltyDecay
// reads) and feeding a per-rail circuit breaker whose state is exported
// as a metric.
// Grounded on the teacher's risk.CircuitBreaker per-symbol breaker map.
type Cascade struct {
	executor *railexec.Executor
	relStore store.RelationalStore
	debiter  Debiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[railexec.Result]
}

func NewCascade(executor *railexec.Executor, relStore store.RelationalStore, debiter Debiter) *Cascade {
	return &Cascade{
		executor: executor,
		relStore: relStore,
		debiter:  debiter,
		breakers: make(map[string]*gobreaker.CircuitBreaker[railexec.Result]),
	}
}

func (c *Cascade) breakerFor(rail string) *gobreaker.CircuitBreaker[railexec.Result] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[rail]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[railexec.Result](gobreaker.Settings{
		Name:        rail,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, float64(to))
		},
	})
	c.breakers[rail] = cb
	return cb
}

// Run executes rails in ranked order until one succeeds or the
// cascade is exhausted, returning the finalized PDRDecision.
func (c *Cascade) Run(ctx context.Context, decision domain.PDRDecision, line domain.Line, rails map[string]domain.RailConfig) domain.PDRDecision {
	order := append([]string{decision.PrimaryRail}, railNames(decision.FallbackRails)...)
	decision.ExecutionStatus = domain.PDRExecuting

	for attempt, railName := range order {
		rc, ok := rails[railName]
		if !ok {
			continue
		}

		decision.CurrentAttemptRail = railName
		decision.AttemptCount = attempt + 1

		if c.debiter != nil {
			ok, err := c.debiter.TryDebit(ctx, railName, line.Amount)
			if err != nil || !ok {
				c.recordAttempt(ctx, railName, line.LineID, attempt+1, false, "DAILY_LIMIT_EXCEEDED", "rail daily limit unavailable", time.Now())
				continue
			}
		}

		cb := c.breakerFor(railName)
		r, breakerErr := cb.Execute(func() (railexec.Result, error) {
			res := c.executor.Execute(ctx, rc, line, attempt+1)
			if !res.Success {
				return res, fmt.Errorf("%s: %s", res.ErrorCode, res.ErrorMessage)
			}
			return res, nil
		})

		if breakerErr != nil {
			if r.ErrorCode == "" {
				r = railexec.Result{ErrorCode: "CIRCUIT_OPEN", ErrorMessage: "rail circuit breaker is open", InitiatedAt: time.Now(), CompletedAt: time.Now()}
			}
			c.recordAttempt(ctx, railName, line.LineID, attempt+1, false, r.ErrorCode, r.ErrorMessage, r.InitiatedAt)
			continue
		}

		c.recordAttempt(ctx, railName, line.LineID, attempt+1, true, "", "", r.InitiatedAt)
		decision.ExecutionStatus = domain.PDRSuccess
		decision.FinalRailUsed = railName
		decision.FinalUTR = r.UTR
		decision.FinalStatus = domain.PDRSuccess
		return decision
	}

	decision.ExecutionStatus = domain.PDRFailed
	decision.FinalStatus = domain.PDRFailed
	return decision
}

func (c *Cascade) recordAttempt(ctx context.Context, rail, lineID string, attemptNo int, success bool, code, msg string, initiated time.Time) {
	perf := domain.RailPerformance{
		RailName:     rail,
		LineID:       lineID,
		AttemptNo:    attemptNo,
		Success:      success,
		ErrorCode:    code,
		ErrorMessage: msg,
		InitiatedAt:  initiated,
		CompletedAt:  time.Now(),
	}
	_ = c.relStore.AppendRailPerformance(ctx, perf)

	outcome := "failure"
	if success {
		outcome = "success"
	}
	metrics.RecordRailAttempt(rail, outcome, float64(perf.CompletedAt.Sub(initiated).Milliseconds()))
}

func railNames(ranked []domain.RankedRail) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.RailName
	}
	return out
}

// CriticPenaltyDecay computes the 0..1 rolling-failure penalty fed
// into scoring (spec.md §4.4.2): each of the last N attempts
// contributes a failure weight that exponentially decays with recency.
func CriticPenaltyDecay(history []domain.RailPerformance, halfLife int) float64 {
	if len(history) == 0 {
		return 0
	}
	if halfLife <= 0 {
		halfLife = 5
	}
	lambda := math.Ln2 / float64(halfLife)

	var weightedFailures, totalWeight float64
	n := len(history)
	for i, p := range history {
		age := float64(n - 1 - i) // most recent has age 0
		w := math.Exp(-lambda * age)
		totalWeight += w
		if !p.Success {
			weightedFailures += w
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedFailures / totalWeight
}
