package store

import (
	"context"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// RelationalStore is the typed persistence interface over the 12
// logical tables of spec.md §6: batches, lines, intent_results,
// acc_decisions, pdr_decisions, ledger_entries, arl_results,
// rca_results, crrak_reports, rail_config, rail_performance, audit_log.
//
// Save*/Upsert*/Update* writes are idempotent on their natural key;
// SaveACCDecision and the Append* methods add a new row on every call.
// The shape follows the teacher's payments.Repository contract
// (context-first, interface-segregated by aggregate).
type RelationalStore interface {
	// batches / lines
	SaveBatch(ctx context.Context, b domain.Batch) error
	GetBatch(ctx context.Context, batchID string) (domain.Batch, bool, error)
	SaveLine(ctx context.Context, l domain.Line) error
	GetLine(ctx context.Context, lineID string) (domain.Line, bool, error)
	ListLinesByBatch(ctx context.Context, batchID string) ([]domain.Line, error)
	UpdateLineStatus(ctx context.Context, lineID string, status domain.LineStatus) error

	// intent_results
	SaveIntentResult(ctx context.Context, r domain.IntentResult) error
	GetIntentResult(ctx context.Context, lineID string) (domain.IntentResult, bool, error)

	// acc_decisions (append-only; at most one `current`)
	SaveACCDecision(ctx context.Context, d domain.ACCDecision) error
	GetCurrentACCDecision(ctx context.Context, lineID string) (domain.ACCDecision, bool, error)
	ListACCDecisions(ctx context.Context, lineID string) ([]domain.ACCDecision, error)

	// pdr_decisions
	SavePDRDecision(ctx context.Context, d domain.PDRDecision) error
	GetPDRDecision(ctx context.Context, lineID string) (domain.PDRDecision, bool, error)

	// ledger_entries
	SaveLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
	ListLedgerEntriesByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error)
	UpdateLedgerEntryState(ctx context.Context, entryID string, state domain.LedgerEntryState) error

	// arl_results
	SaveARLResult(ctx context.Context, r domain.ARLResult) error
	GetARLResult(ctx context.Context, lineID string) (domain.ARLResult, bool, error)

	// rca_results
	SaveRCAResult(ctx context.Context, r domain.RCAResult) error
	GetRCAResult(ctx context.Context, lineID string) (domain.RCAResult, bool, error)

	// crrak_reports
	SaveCRRAKReport(ctx context.Context, r domain.CRRAKReport) error
	GetCRRAKReport(ctx context.Context, lineID string) (domain.CRRAKReport, bool, error)

	// rail_config
	UpsertRailConfig(ctx context.Context, rc domain.RailConfig) error
	ListRailConfigs(ctx context.Context) ([]domain.RailConfig, error)
	GetRailConfig(ctx context.Context, railName string) (domain.RailConfig, bool, error)

	// rail_performance (append-only)
	AppendRailPerformance(ctx context.Context, p domain.RailPerformance) error
	ListRecentRailPerformance(ctx context.Context, railName string, limit int) ([]domain.RailPerformance, error)

	// audit_log (append-only, gap-free per batch_id)
	AppendAuditEvent(ctx context.Context, event domain.AuditLogEvent) error
	ListAuditEvents(ctx context.Context, batchID string) ([]domain.AuditLogEvent, error)
	LastSeq(ctx context.Context, batchID string) (int64, error)
}
