// Package reconciliation implements the Automated Reconciliation Layer
// (ARL) of spec.md §4.6: it compares the ledger entries produced by
// rail execution against the PDR decision's expected amount/timestamp
// and emits a structured verdict. Grounded on the teacher's
// payments.ReconciliationService amount/timestamp comparison idiom.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

const (
	amountTolerance           = "0.01"
	timestampToleranceSeconds = 300
)

// Reconciler runs the ARL checks and persists the result.
type Reconciler struct {
	relStore store.RelationalStore
}

func NewReconciler(relStore store.RelationalStore) *Reconciler {
	return &Reconciler{relStore: relStore}
}

// Reconcile compares entries against the expected amount/timestamp
// carried by the PDR decision, advancing entries to RECONCILED on a
// clean match (spec.md §4.6).
func (r *Reconciler) Reconcile(ctx context.Context, lineID string, expectedAmount domain.Amount, expectedTS time.Time, entries []domain.LedgerEntry) (domain.ARLResult, error) {
	tolerance, _ := domain.NewAmount(amountTolerance)

	var discrepancies []domain.Discrepancy
	matched, total := 0, 0

	var debit, credit *domain.LedgerEntry
	for i := range entries {
		e := &entries[i]
		switch e.Side {
		case domain.SideDebit:
			debit = e
		case domain.SideCredit:
			credit = e
		}
	}

	// pair-completeness check
	total++
	if debit == nil {
		discrepancies = append(discrepancies, domain.Discrepancy{Code: "MISSING_ENTRY", Severity: domain.SeverityCritical, Detail: "missing DEBIT entry"})
	} else if credit == nil {
		discrepancies = append(discrepancies, domain.Discrepancy{Code: "MISSING_ENTRY", Severity: domain.SeverityCritical, Detail: "missing CREDIT entry"})
	} else {
		matched++
	}

	for _, e := range entries {
		// amount-equality check
		total++
		if !e.Amount.WithinTolerance(expectedAmount, tolerance) {
			discrepancies = append(discrepancies, domain.Discrepancy{
				Code:     "AMOUNT_MISMATCH",
				Severity: domain.SeverityHigh,
				Detail:   fmt.Sprintf("entry %s amount %s does not match expected %s", e.EntryID, e.Amount.String(), expectedAmount.String()),
			})
		} else {
			matched++
		}

		// timestamp-agreement check
		total++
		if diffSeconds(e.TS, expectedTS) > timestampToleranceSeconds {
			discrepancies = append(discrepancies, domain.Discrepancy{
				Code:     "TIMESTAMP_MISMATCH",
				Severity: domain.SeverityMedium,
				Detail:   fmt.Sprintf("entry %s timestamp diverges from PDR decision by more than %ds", e.EntryID, timestampToleranceSeconds),
			})
		} else {
			matched++
		}
	}
	if total == 0 {
		total = 1
	}

	verdict := verdictFor(discrepancies)
	result := domain.ARLResult{
		LineID:        lineID,
		State:         verdict,
		MatchedCount:  matched,
		TotalCount:    total,
		Discrepancies: discrepancies,
		Score:         float64(matched) / float64(total) * 100,
	}

	if err := r.relStore.SaveARLResult(ctx, result); err != nil {
		return domain.ARLResult{}, fmt.Errorf("persist arl result for %s: %w", lineID, err)
	}

	if verdict == domain.ARLReconciled {
		for _, e := range entries {
			if err := r.relStore.UpdateLedgerEntryState(ctx, e.EntryID, domain.LedgerReconciled); err != nil {
				return domain.ARLResult{}, fmt.Errorf("advance ledger entry %s: %w", e.EntryID, err)
			}
		}
	}

	return result, nil
}

func verdictFor(discrepancies []domain.Discrepancy) domain.ARLState {
	if len(discrepancies) == 0 {
		return domain.ARLReconciled
	}
	for _, d := range discrepancies {
		if d.Severity == domain.SeverityHigh || d.Severity == domain.SeverityCritical {
			return domain.ARLFailed
		}
	}
	return domain.ARLPartial
}

func diffSeconds(a, b time.Time) float64 {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d.Seconds()
}
