// Package crrak implements the Audit Composer (CRRAK) of spec.md
// §4.8: it assembles the regulator-facing record from every prior
// agent's output. Grounded on the teacher's
// compliance/services/audit_trail.go and transaction_reporting.go
// report-assembly shape.
package crrak

import (
	"context"
	"fmt"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/idgen"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

// Inputs bundles every prior agent's output the composer reads
// (spec.md §4.8).
type Inputs struct {
	LineID          string
	Amount          domain.Amount
	ACC             domain.ACCDecision
	HasSanctionFlag bool
	KYCVerified     bool
	PDRFailed       bool
	CreditScoreLow  bool
	AuditTrail      []domain.AuditTrailEvent
}

// Composer persists the assembled CRRAKReport in structured form and
// renders a blob under the deterministic evidence key.
type Composer struct {
	relStore store.RelationalStore
	objStore store.ObjectStore
}

func NewComposer(relStore store.RelationalStore, objStore store.ObjectStore) *Composer {
	return &Composer{relStore: relStore, objStore: objStore}
}

func (c *Composer) Compose(ctx context.Context, tenant, batch string, in Inputs) (domain.CRRAKReport, error) {
	score := complianceScore(in)
	status := complianceStatus(score)
	risk := riskAssessment(in)

	report := domain.CRRAKReport{
		LineID:           in.LineID,
		ComplianceStatus: status,
		ComplianceScore:  score,
		SanctionsClear:   !in.HasSanctionFlag,
		KYCVerified:      in.KYCVerified,
		Risk:             risk,
		RiskFactors:      riskFactors(in),
		AuditTrail:       append(in.AuditTrail, domain.AuditTrailEvent{TS: time.Now().UTC(), Actor: "CRRAK", Action: "audit_composed", Detail: "compliance report assembled"}),
		Recommendations:  recommendations(in),
		ReportRef:        idgen.ReportRef(),
		IssuedAt:         time.Now().UTC(),
	}

	if err := c.relStore.SaveCRRAKReport(ctx, report); err != nil {
		return domain.CRRAKReport{}, fmt.Errorf("persist crrak report for %s: %w", in.LineID, err)
	}

	if c.objStore != nil {
		key := store.Keys().ProcessedEvidence(tenant, batch, in.LineID, store.PhaseCRRAK)
		if err := c.objStore.Put(ctx, key, renderBlob(report)); err != nil {
			return domain.CRRAKReport{}, fmt.Errorf("render crrak blob for %s: %w", in.LineID, err)
		}
	}

	return report, nil
}

// complianceScore implements spec.md §4.8's fixed deduction schedule.
func complianceScore(in Inputs) float64 {
	score := 100.0
	if in.ACC.Decision == domain.ACCFail {
		score -= 30
	}
	if in.HasSanctionFlag {
		score -= 50
	}
	if !in.KYCVerified {
		score -= 20
	}
	if in.Amount.Float64() > 1_000_000 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func complianceStatus(score float64) domain.ComplianceStatus {
	switch {
	case score >= 80:
		return domain.Compliant
	case score >= 60:
		return domain.PendingReview
	default:
		return domain.NonCompliant
	}
}

// riskAssessment derives the 3-dimensional risk vector (spec.md §4.8).
func riskAssessment(in Inputs) domain.RiskAssessment {
	transaction := transactionRisk(in.Amount)
	counterparty := counterpartyRisk(in)
	operational := operationalRisk(in)
	overall := (transaction + counterparty + operational) / 3

	return domain.RiskAssessment{
		Overall:      round2(overall),
		Transaction:  round2(transaction),
		Counterparty: round2(counterparty),
		Operational:  round2(operational),
	}
}

func transactionRisk(amount domain.Amount) float64 {
	v := amount.Float64()
	switch {
	case v > 1_000_000:
		return 60
	case v > 100_000:
		return 30
	default:
		return 10
	}
}

func counterpartyRisk(in Inputs) float64 {
	risk := 0.0
	if !in.KYCVerified {
		risk += 40
	}
	if in.CreditScoreLow {
		risk += 30
	}
	return risk
}

func operationalRisk(in Inputs) float64 {
	risk := 0.0
	if in.PDRFailed {
		risk += 30
	}
	// ACC.RiskScore is on a 0-100 scale; rescale its contribution back to
	// a 0-40 share of operational risk.
	risk += in.ACC.RiskScore * 0.4
	return risk
}

func riskFactors(in Inputs) []string {
	var factors []string
	if in.ACC.Decision == domain.ACCFail {
		factors = append(factors, "ACC_FAIL")
	}
	if in.HasSanctionFlag {
		factors = append(factors, "SANCTION_FLAG")
	}
	if !in.KYCVerified {
		factors = append(factors, "KYC_UNVERIFIED")
	}
	if in.Amount.Float64() > 1_000_000 {
		factors = append(factors, "LARGE_AMOUNT")
	}
	if in.PDRFailed {
		factors = append(factors, "PDR_FAILED")
	}
	return factors
}

// recommendations is a deterministic mapping from which checks failed
// (spec.md §4.8).
func recommendations(in Inputs) []string {
	var recs []string
	if in.HasSanctionFlag {
		recs = append(recs, "Escalate to compliance for sanctions review before any retry.")
	}
	if !in.KYCVerified {
		recs = append(recs, "Complete KYC verification for the counterparty.")
	}
	if in.PDRFailed {
		recs = append(recs, "Review rail selection and retry settlement.")
	}
	if in.Amount.Float64() > 1_000_000 {
		recs = append(recs, "Apply enhanced due diligence given the transaction size.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No further action required.")
	}
	return recs
}

func renderBlob(report domain.CRRAKReport) []byte {
	return []byte(fmt.Sprintf("CRRAK Report %s\nStatus: %s\nScore: %.2f\nIssued: %s\n",
		report.ReportRef, report.ComplianceStatus, report.ComplianceScore, report.IssuedAt.Format(time.RFC3339)))
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
