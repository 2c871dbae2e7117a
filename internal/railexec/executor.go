// Package railexec is the mock settlement rail executor of spec.md
// §4.5: it never calls a real bank API, but reproduces each rail
// dialect's latency, failure modes and UTR format deterministically
// under a seeded RNG. Grounded on the teacher's lpmanager/adapters
// request/response shape (ID, per-adapter behavior) with the live
// network calls replaced by a seeded simulation.
package railexec

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// Clock abstracts time.Now so tests can pin "now" without sleeping.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Result is one rail execution attempt's outcome.
type Result struct {
	Success      bool
	UTR          string
	ActualETAMs  int
	ErrorCode    string
	ErrorMessage string
	InitiatedAt  time.Time
	CompletedAt  time.Time
}

// Executor simulates settlement across IMPS, NEFT, RTGS, UPI and
// intra-bank transfer (IFT) dialects.
type Executor struct {
	rng   *rand.Rand
	clock Clock
}

// New builds an Executor. When deterministic is true, seed pins the
// RNG so repeated runs against the same inputs reproduce identical
// outcomes (spec.md §4.5 "Determinism").
func New(deterministic bool, seed int64, clock Clock) *Executor {
	if clock == nil {
		clock = systemClock{}
	}
	src := rand.NewSource(time.Now().UnixNano())
	if deterministic {
		src = rand.NewSource(seed)
	}
	return &Executor{rng: rand.New(src), clock: clock}
}

// Execute runs one settlement attempt for line over rail, given the
// attempt number (1-indexed) within the PDR fallback cascade.
func (e *Executor) Execute(ctx context.Context, rail domain.RailConfig, line domain.Line, attemptNo int) Result {
	initiated := e.clock.Now()

	if rail.RailType == domain.RailRealtime && !withinRTGSWindow(initiated) {
		return Result{
			Success:      false,
			ErrorCode:    "OUTSIDE_WORKING_HOURS",
			ErrorMessage: "RTGS settlement window closed",
			InitiatedAt:  initiated,
			CompletedAt:  e.clock.Now(),
		}
	}

	if rail.RailType == domain.RailIntrabank && line.Sender.IFSCPrefix() != line.Receiver.IFSCPrefix() {
		return Result{
			Success:      false,
			ErrorCode:    "NOT_INTRABANK",
			ErrorMessage: "sender and receiver are not in the same bank",
			InitiatedAt:  initiated,
			CompletedAt:  e.clock.Now(),
		}
	}

	successProb := rail.SuccessProbability
	successProb -= retryPenalty(attemptNo)
	successProb -= largeAmountPenalty(rail, line.Amount)
	if successProb < 0.01 {
		successProb = 0.01
	}

	etaMs := jitterETA(e.rng, rail.AvgETAMs)
	completed := initiated.Add(time.Duration(etaMs) * time.Millisecond)

	if e.rng.Float64() > successProb {
		code, msg := failureReason(e.rng, rail.RailType)
		return Result{
			Success:      false,
			ActualETAMs:  etaMs,
			ErrorCode:    code,
			ErrorMessage: msg,
			InitiatedAt:  initiated,
			CompletedAt:  completed,
		}
	}

	return Result{
		Success:     true,
		UTR:         generateUTR(e.rng, rail),
		ActualETAMs: etaMs,
		InitiatedAt: initiated,
		CompletedAt: completed,
	}
}

// withinRTGSWindow enforces the 09:00:00-16:30:00 weekday window
// (spec.md §4.4/§4.5 worked example); boundary is inclusive of
// 16:30:00 and exclusive one second past it.
func withinRTGSWindow(ts time.Time) bool {
	if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
		return false
	}
	minutes := ts.Hour()*60 + ts.Minute()
	if minutes < 9*60 || minutes > 16*60+30 {
		return false
	}
	if minutes == 16*60+30 && ts.Second() > 0 {
		return false
	}
	return true
}

// retryPenalty models the fallback cascade's degrading success rate:
// each subsequent attempt within the same line loses 5 points of
// success probability (spec.md §4.5).
func retryPenalty(attemptNo int) float64 {
	if attemptNo <= 1 {
		return 0
	}
	return 0.05 * float64(attemptNo-1)
}

// largeAmountPenalty shaves success probability for amounts near a
// rail's ceiling, modeling real banking rails' higher scrutiny/failure
// rate on large-value transfers (spec.md §4.5).
func largeAmountPenalty(rail domain.RailConfig, amount domain.Amount) float64 {
	if rail.MaxAmount.IsZero() {
		return 0
	}
	ratio := amount.Float64() / rail.MaxAmount.Float64()
	if ratio < 0.8 {
		return 0
	}
	return (ratio - 0.8) * 0.5
}

func jitterETA(rng *rand.Rand, avgMs int) int {
	spread := float64(avgMs) * 0.2
	delta := (rng.Float64()*2 - 1) * spread
	eta := float64(avgMs) + delta
	if eta < 1 {
		eta = 1
	}
	return int(eta)
}

func failureReason(rng *rand.Rand, rt domain.RailType) (string, string) {
	reasons := []struct{ code, msg string }{
		{"BANK_TIMEOUT", "beneficiary bank did not respond in time"},
		{"ACCOUNT_INVALID", "beneficiary account could not be validated"},
		{"INSUFFICIENT_FUNDS", "sender account had insufficient balance at settlement time"},
		{"RAIL_REJECTED", "rail rejected the transaction"},
	}
	r := reasons[rng.Intn(len(reasons))]
	return r.code, r.msg
}

// generateUTR produces a synthetic UTR in each rail dialect's format.
func generateUTR(rng *rand.Rand, rail domain.RailConfig) string {
	prefix := map[domain.RailType]string{
		domain.RailInstant:   "UPI",
		domain.RailRealtime:  "RTGS",
		domain.RailBatchType: "NEFT",
		domain.RailIntrabank: "IFT",
	}[rail.RailType]
	if rail.RailType == domain.RailInstant && rail.RailName == "IMPS" {
		prefix = "IMPS"
	}
	if prefix == "" {
		prefix = "TXN"
	}
	return fmt.Sprintf("%s%012d", prefix, rng.Int63n(1_000_000_000_000))
}
