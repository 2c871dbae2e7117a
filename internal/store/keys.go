// Package store defines the object-store and relational-store adapter
// contracts and their implementations. Per the teacher's Design Notes
// strategy of centralizing key derivation in one module (spec.md §9),
// every object-store key in this system is built here, never at a call
// site.
package store

import "fmt"

// ObjectKeys centralizes the deterministic key scheme of spec.md §6.
type ObjectKeys struct{}

func Keys() ObjectKeys { return ObjectKeys{} }

func (ObjectKeys) RawInvoice(tenant, batch string) string {
	return fmt.Sprintf("invoices/raw/%s/%s/raw.json", tenant, batch)
}

// Phase names an evidence artifact produced by one pipeline agent.
type Phase string

const (
	PhasePDR   Phase = "pdr"
	PhaseACC   Phase = "acc"
	PhaseARL   Phase = "arl"
	PhaseRCA   Phase = "rca"
	PhaseCRRAK Phase = "crrak"
)

func (ObjectKeys) ProcessedEvidence(tenant, batch, line string, phase Phase) string {
	return fmt.Sprintf("invoices/processed/%s/%s/%s/%s.json", tenant, batch, line, phase)
}

func (ObjectKeys) AuditReportPDF(tenant, batch, line string) string {
	return fmt.Sprintf("audit/%s/%s/%s/report.pdf", tenant, batch, line)
}
