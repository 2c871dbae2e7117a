// Package orchestrator implements the Master Control Program (MCP) of
// spec.md §4.1: it drives each Line through its state machine,
// invoking the Intent Classifier, ACC, PDR, the mock rail executor,
// ARL, RCA and CRRAK in sequence, bounded by a per-process line
// semaphore. Grounded on the teacher's oms.Service map+mutex
// bookkeeping, generalized to a multi-stage pipeline with
// golang.org/x/sync/semaphore gating concurrency instead of a single
// lock, following the teacher's lpmanager.Manager goroutine-per-unit
// dispatch pattern.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auditlog"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auth"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/compliance"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/config"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/crrak"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/intent"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/metrics"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railregistry"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/reconciliation"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/rootcause"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/scoring"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/wsstatus"
)

// Orchestrator is the MCP. One instance serves an entire process; its
// semaphores bound concurrent line/batch execution process-wide.
type Orchestrator struct {
	relStore store.RelationalStore
	objStore store.ObjectStore
	audit    *auditlog.Log

	rails    *railregistry.Registry
	acc      *compliance.Evaluator
	cascade  *scoring.Cascade
	arl      *reconciliation.Reconciler
	rca      *rootcause.Analyzer
	crrak    *crrak.Composer

	cfg config.OrchestratorConfig

	lineSem  *semaphore.Weighted
	batchSem *semaphore.Weighted

	activeLineCount int64

	agents *agentStatusBoard

	jwtSecret []byte

	tenant string

	statusHub *wsstatus.Hub
}

type Deps struct {
	RelStore store.RelationalStore
	ObjStore store.ObjectStore
	Audit    *auditlog.Log
	Rails    *railregistry.Registry
	ACC      *compliance.Evaluator
	Cascade  *scoring.Cascade
	ARL      *reconciliation.Reconciler
	RCA      *rootcause.Analyzer
	CRRAK    *crrak.Composer
	Cfg       config.OrchestratorConfig
	JWTSecret []byte
	Tenant    string
	StatusHub *wsstatus.Hub
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		relStore:  d.RelStore,
		objStore:  d.ObjStore,
		audit:     d.Audit,
		rails:     d.Rails,
		acc:       d.ACC,
		cascade:   d.Cascade,
		arl:       d.ARL,
		rca:       d.RCA,
		crrak:     d.CRRAK,
		cfg:       d.Cfg,
		lineSem:   semaphore.NewWeighted(int64(d.Cfg.LineParallelism)),
		batchSem:  semaphore.NewWeighted(int64(d.Cfg.BatchParallelism)),
		agents:    newAgentStatusBoard(),
		jwtSecret: d.JWTSecret,
		tenant:    d.Tenant,
		statusHub: d.StatusHub,
	}
}

func (o *Orchestrator) publishWorkflow(ctx context.Context, workflowID, batchID string) {
	if o.statusHub == nil {
		return
	}
	status, err := o.GetWorkflowStatus(ctx, workflowID, batchID)
	if err != nil {
		return
	}
	o.statusHub.Publish(wsstatus.StatusEvent{Type: "workflow_status", Payload: status})
}

// StartBatch persists batch+lines and dispatches one bounded task per
// line; it returns once every line has reached a terminal state
// (spec.md §5's "batch is partitioned into independent per-line
// tasks").
func (o *Orchestrator) StartBatch(ctx context.Context, batch domain.Batch, lines []domain.Line) error {
	if err := o.batchSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire batch slot: %w", err)
	}
	defer o.batchSem.Release(1)

	if err := o.relStore.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("persist batch %s: %w", batch.BatchID, err)
	}
	if _, err := o.audit.Append(ctx, batch.BatchID, "", "batch_started", domain.ActorMCP, batch.WorkflowID); err != nil {
		return fmt.Errorf("audit batch_started: %w", err)
	}

	errs := make(chan error, len(lines))
	for _, line := range lines {
		line := line
		if err := o.relStore.SaveLine(ctx, line); err != nil {
			return fmt.Errorf("persist line %s: %w", line.LineID, err)
		}
		go func() {
			if err := o.lineSem.Acquire(ctx, 1); err != nil {
				errs <- err
				return
			}
			defer o.lineSem.Release(1)
			count := atomic.AddInt64(&o.activeLineCount, 1)
			metrics.SetActiveLines(int(count))
			defer func() {
				metrics.SetActiveLines(int(atomic.AddInt64(&o.activeLineCount, -1)))
			}()
			errs <- o.processLine(ctx, batch, line)
		}()
	}

	var firstErr error
	for range lines {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if _, err := o.audit.Append(ctx, batch.BatchID, "", "batch_completed", domain.ActorMCP, ""); err != nil {
		log.Printf("[MCP] audit batch_completed failed for %s: %v", batch.BatchID, err)
	}
	o.publishWorkflow(ctx, batch.WorkflowID, batch.BatchID)
	if o.statusHub != nil {
		o.statusHub.Publish(wsstatus.StatusEvent{Type: "agent_status", Payload: o.GetAgentStatus()})
	}
	return firstErr
}

// processLine drives one line through INITIALIZED -> ... -> a terminal
// state, deriving its pipeline shape from the ACC verdict (spec.md
// §4.1, SPEC_FULL.md Open Question resolution):
//   PASS -> PDR -> Execute -> ARL -> CRRAK
//   HOLD -> PDR -> RCA -> CRRAK
//   FAIL -> RCA -> CRRAK
// and splicing RCA before CRRAK on any downstream failure.
func (o *Orchestrator) processLine(ctx context.Context, batch domain.Batch, line domain.Line) error {
	start := time.Now()
	defer func() {
		metrics.RecordLineCompletion(string(line.Status), float64(time.Since(start).Milliseconds()))
	}()

	advance := func(status domain.LineStatus, action string) error {
		line.Status = status
		if err := o.relStore.UpdateLineStatus(ctx, line.LineID, status); err != nil {
			return err
		}
		if _, err := o.audit.Append(ctx, batch.BatchID, line.LineID, action, domain.ActorMCP, string(status)); err != nil {
			return err
		}
		o.publishWorkflow(ctx, batch.WorkflowID, batch.BatchID)
		return nil
	}

	if err := advance(domain.StatusIngesting, "line_ingesting"); err != nil {
		return err
	}
	if err := advance(domain.StatusValidating, "line_validating"); err != nil {
		return err
	}
	if err := advance(domain.StatusClassifying, "line_classifying"); err != nil {
		return err
	}

	intentResult := intent.Classify(intent.Input{
		Text:             line.PurposeCode + " " + line.Remarks,
		Amount:           line.Amount,
		IsDomestic:       true,
		RequiredFieldsOK: line.PurposeCode != "" && line.Amount.Float64() > 0,
		Account:          accountConfidence(line),
	})
	intentResult.LineID = line.LineID
	if err := o.relStore.SaveIntentResult(ctx, intentResult); err != nil {
		return fmt.Errorf("persist intent result for %s: %w", line.LineID, err)
	}
	line.PaymentType = intentResult.Intent

	if err := advance(domain.StatusRouting, "line_routing"); err != nil {
		return err
	}

	accDecision, err := o.callACC(ctx, line)
	if err != nil {
		o.agents.recordError(AgentACC, err)
		return err
	}
	o.agents.recordSuccess(AgentACC)

	switch accDecision.Decision {
	case domain.ACCFail:
		issueCode := rootcause.IssueCodeFromACCViolations(accDecision.Reasons)
		return o.failWithRCA(ctx, batch, line, accDecision, rootcause.Evidence{LineID: line.LineID, HasACC: true, IssueCode: issueCode})
	}

	pdrDecision, eligible, err := o.runPDR(ctx, line, accDecision)
	if err != nil {
		o.agents.recordError(AgentPDR, err)
		issueCode := "BANK_UNAVAILABLE"
		var noEligible *noEligibleRailsError
		if errors.As(err, &noEligible) {
			if code := rootcause.IssueCodeFromPDRReasons(noEligible.rejected); code != "" {
				issueCode = code
			}
		}
		return o.failWithRCA(ctx, batch, line, accDecision, rootcause.Evidence{LineID: line.LineID, HasPDR: true, HasACC: true, IssueCode: issueCode})
	}
	o.agents.recordSuccess(AgentPDR)

	if accDecision.Decision == domain.ACCHold {
		if err := advance(domain.StatusHold, "line_hold"); err != nil {
			return err
		}
		return o.rcaThenCRRAK(ctx, batch, line, accDecision, pdrDecision, "ACC_HOLD")
	}

	if err := advance(domain.StatusExecuting, "line_executing"); err != nil {
		return err
	}

	finalDecision := o.cascade.Run(ctx, pdrDecision, line, eligible)
	if err := o.relStore.SavePDRDecision(ctx, finalDecision); err != nil {
		return fmt.Errorf("persist pdr decision for %s: %w", line.LineID, err)
	}

	if finalDecision.ExecutionStatus == domain.PDRFailed {
		if err := advance(domain.StatusFailed, "line_failed"); err != nil {
			return err
		}
		return o.rcaThenCRRAK(ctx, batch, line, accDecision, finalDecision, "RAIL_EXHAUSTED")
	}

	if err := o.seedLedgerEntries(ctx, line, finalDecision); err != nil {
		return err
	}

	if err := advance(domain.StatusAuditing, "line_auditing"); err != nil {
		return err
	}

	entries, err := o.relStore.ListLedgerEntriesByReference(ctx, batch.BatchID+":"+line.LineID)
	if err != nil {
		return fmt.Errorf("list ledger entries for %s: %w", line.LineID, err)
	}
	arlResult, err := o.arl.Reconcile(ctx, line.LineID, line.Amount, finalDecision.DecidedAt, entries)
	if err != nil {
		o.agents.recordError(AgentARL, err)
		return err
	}
	o.agents.recordSuccess(AgentARL)

	if arlResult.State == domain.ARLFailed {
		if err := advance(domain.StatusFailed, "line_failed"); err != nil {
			return err
		}
		return o.rcaThenCRRAK(ctx, batch, line, accDecision, finalDecision, "ARL_FAILED")
	}

	if _, err := o.crrak.Compose(ctx, o.tenant, batch.BatchID, crrak.Inputs{
		LineID:      line.LineID,
		Amount:      line.Amount,
		ACC:         accDecision,
		KYCVerified: true,
		PDRFailed:   false,
	}); err != nil {
		o.agents.recordError(AgentCRRAK, err)
		return err
	}
	o.agents.recordSuccess(AgentCRRAK)

	return advance(domain.StatusCompleted, "line_completed")
}

func (o *Orchestrator) failWithRCA(ctx context.Context, batch domain.Batch, line domain.Line, acc domain.ACCDecision, ev rootcause.Evidence) error {
	if err := o.relStore.UpdateLineStatus(ctx, line.LineID, domain.StatusFailed); err != nil {
		return err
	}
	if _, err := o.audit.Append(ctx, batch.BatchID, line.LineID, "line_failed", domain.ActorMCP, "acc_fail"); err != nil {
		return err
	}
	return o.rcaThenCRRAK(ctx, batch, line, acc, domain.PDRDecision{}, ev.IssueCode)
}

func (o *Orchestrator) rcaThenCRRAK(ctx context.Context, batch domain.Batch, line domain.Line, acc domain.ACCDecision, pdr domain.PDRDecision, issueCode string) error {
	rcaResult, err := o.rca.Analyze(ctx, rootcause.Evidence{
		LineID:      line.LineID,
		IssueCode:   issueCode,
		HasPDR:      pdr.LineID != "",
		HasACC:      true,
		HasInvoice:  true,
		PrimaryRail: pdr.PrimaryRail,
	})
	if err != nil {
		o.agents.recordError(AgentRCA, err)
		return err
	}
	o.agents.recordSuccess(AgentRCA)

	if _, err := o.audit.Append(ctx, batch.BatchID, line.LineID, "rca_complete", domain.ActorRCA, rcaResult.RootCause.IssueCode); err != nil {
		return err
	}

	if _, err := o.crrak.Compose(ctx, o.tenant, batch.BatchID, crrak.Inputs{
		LineID:          line.LineID,
		Amount:          line.Amount,
		ACC:             acc,
		HasSanctionFlag: acc.Decision == domain.ACCFail,
		KYCVerified:     acc.Decision != domain.ACCFail,
		PDRFailed:       true,
	}); err != nil {
		o.agents.recordError(AgentCRRAK, err)
		return err
	}
	o.agents.recordSuccess(AgentCRRAK)

	return nil
}

func (o *Orchestrator) callACC(ctx context.Context, line domain.Line) (domain.ACCDecision, error) {
	verifications := []compliance.Verification{
		{Kind: "PAN", Status: "VERIFIED"},
		{Kind: "BANK_ACCOUNT_NAME_MATCH", Status: "VERIFIED"},
	}

	var decision domain.ACCDecision
	err := retryWithBackoff(ctx, o.cfg, func() error {
		d, err := o.acc.Evaluate(ctx, line, verifications)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	return decision, err
}

// noEligibleRailsError preserves the hard-constraint rejection reasons
// that excluded every rail, so the caller can derive an RCA issue code
// instead of reporting a generic bank-unavailable cause.
type noEligibleRailsError struct {
	lineID   string
	rejected []domain.FilterReason
}

func (e *noEligibleRailsError) Error() string {
	return "no eligible rails for line " + e.lineID
}

func (o *Orchestrator) runPDR(ctx context.Context, line domain.Line, acc domain.ACCDecision) (domain.PDRDecision, map[string]domain.RailConfig, error) {
	rails := o.rails.List()
	eligible, rejected := scoring.Filter(scoring.FilterInput{
		Line:      line,
		ACC:       acc,
		IsNewUser: line.IsNewSender,
		Now:       time.Now(),
	}, rails)

	if len(eligible) == 0 {
		return domain.PDRDecision{}, nil, &noEligibleRailsError{lineID: line.LineID, rejected: rejected}
	}

	criticDecay := make(map[string]float64, len(eligible))
	for _, rc := range eligible {
		history, err := o.relStore.ListRecentRailPerformance(ctx, rc.RailName, 20)
		if err != nil {
			return domain.PDRDecision{}, nil, err
		}
		criticDecay[rc.RailName] = scoring.CriticPenaltyDecay(history, 5)
	}

	raw := scoring.ExtractFeatures(eligible, scoring.ExtractInput{
		Line:               line,
		ACC:                acc,
		CriticPenaltyDecay: criticDecay,
		WindowBonus:        map[string]float64{},
		Now:                time.Now(),
	})
	normalized := scoring.Normalize(raw)
	ranked := scoring.Score(raw, normalized, scoring.DefaultWeights)

	primary := ranked[0]
	fallbacks := ranked[1:]

	snapshots := make([]domain.FeatureSnapshot, 0, len(raw))
	for _, r := range raw {
		snapshots = append(snapshots, domain.FeatureSnapshot{
			RailName:   r.RailName,
			Raw:        r.Values,
			Normalized: normalized[r.RailName],
			TopTerms:   scoring.TopTerms(normalized[r.RailName], scoring.DefaultWeights),
		})
	}

	decision := domain.PDRDecision{
		LineID:           line.LineID,
		PrimaryRail:      primary.RailName,
		PrimaryScore:     primary.Score,
		FallbackRails:    fallbacks,
		FeatureSnapshots: snapshots,
		WeightSnapshot:   scoring.DefaultWeights,
		FilteredOut:      rejected,
		ExecutionStatus:  domain.PDRPending,
		DecidedAt:        time.Now().UTC(),
	}

	eligibleByName := make(map[string]domain.RailConfig, len(eligible))
	for _, rc := range eligible {
		eligibleByName[rc.RailName] = rc
	}
	return decision, eligibleByName, nil
}

func (o *Orchestrator) seedLedgerEntries(ctx context.Context, line domain.Line, decision domain.PDRDecision) error {
	reference := decision.LineID
	if idx := len(line.BatchID); idx > 0 {
		reference = line.BatchID + ":" + line.LineID
	}
	now := time.Now().UTC()
	debit := domain.LedgerEntry{
		EntryID:   decision.FinalUTR + "-D",
		Account:   line.Sender.Account,
		Side:      domain.SideDebit,
		Amount:    line.Amount,
		Currency:  line.Currency,
		Reference: reference,
		UTR:       decision.FinalUTR,
		TS:        now,
		State:     domain.LedgerPosted,
	}
	credit := debit
	credit.EntryID = decision.FinalUTR + "-C"
	credit.Account = line.Receiver.Account
	credit.Side = domain.SideCredit

	if err := o.relStore.SaveLedgerEntry(ctx, debit); err != nil {
		return fmt.Errorf("seed debit entry for %s: %w", line.LineID, err)
	}
	if err := o.relStore.SaveLedgerEntry(ctx, credit); err != nil {
		return fmt.Errorf("seed credit entry for %s: %w", line.LineID, err)
	}
	return nil
}

func accountConfidence(line domain.Line) intent.AccountConfidence {
	if line.AccountFlagged {
		return intent.AccountFlagged
	}
	if line.IsNewSender {
		return intent.AccountNew
	}
	return intent.AccountNormal
}

// GetWorkflowStatus aggregates line statuses for the batch carrying
// workflowID (spec.md external interfaces).
func (o *Orchestrator) GetWorkflowStatus(ctx context.Context, workflowID, batchID string) (WorkflowStatus, error) {
	lines, err := o.relStore.ListLinesByBatch(ctx, batchID)
	if err != nil {
		return WorkflowStatus{}, err
	}
	byStatus := make(map[string]int)
	completed := true
	for _, l := range lines {
		byStatus[string(l.Status)]++
		if !l.Status.IsTerminal() {
			completed = false
		}
	}
	return WorkflowStatus{
		WorkflowID: workflowID,
		BatchID:    batchID,
		LineCount:  len(lines),
		ByStatus:   byStatus,
		Completed:  completed,
	}, nil
}

// GetAgentStatus returns the rolling invocation/error counters for
// every pipeline agent.
func (o *Orchestrator) GetAgentStatus() map[AgentName]AgentStatus {
	return o.agents.snapshot()
}

// HandleOverride verifies an operator's signed override and, if the
// named line is currently in HOLD, transitions it back to ROUTING and
// records an operator_override audit event (SPEC_FULL.md Open Question
// resolution). It does not itself re-run PDR or any later stage.
func (o *Orchestrator) HandleOverride(ctx context.Context, override OperatorOverride) error {
	claims, err := auth.ValidateToken(override.Token, o.jwtSecret)
	if err != nil {
		return fmt.Errorf("invalid override token: %w", err)
	}
	if claims.Role != "compliance_operator" && claims.Role != "admin" {
		return fmt.Errorf("operator %s is not authorized to override holds", claims.Username)
	}

	line, ok, err := o.relStore.GetLine(ctx, override.LineID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("line not found: %s", override.LineID)
	}
	if line.Status != domain.StatusHold {
		return nil // idempotent: already past HOLD, nothing to do
	}

	if err := o.relStore.UpdateLineStatus(ctx, override.LineID, domain.StatusRouting); err != nil {
		return err
	}
	_, err = o.audit.Append(ctx, line.BatchID, line.LineID, "operator_override", domain.AuditActor(claims.Username), override.Actor)
	return err
}

// retryWithBackoff retries fn up to cfg.RetryMax times with exponential
// backoff rooted at cfg.RetryBaseDelay (spec.md §5's per-agent retry
// model, ORCH_RETRY_BASE_DELAY).
func retryWithBackoff(ctx context.Context, cfg config.OrchestratorConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		delay := time.Duration(float64(cfg.RetryBaseDelay) * math.Pow(2, float64(attempt)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
