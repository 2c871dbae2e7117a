// Package rootcause implements Root-cause Analysis (RCA) of spec.md
// §4.7: on any agent/rail failure it pattern-matches observed issue
// codes against a fixed mapping and synthesizes one RootCause. Grounded
// on the teacher's risk.Engine rule-lookup idiom (fixed code table with
// a generic fallback).
package rootcause

import (
	"context"
	"fmt"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
)

type causeTemplate struct {
	source         domain.RCASource
	recommendation string
	severity       domain.RCASeverity
}

// fixed issue-code mapping (spec.md §4.7 rule 2). Keys cover both ACC's
// violation codes, which are passed through as-is, and the issue codes
// that pdrReasonIssueCode translates PDR's free-text rejection reasons into.
var issueCodeMap = map[string]causeTemplate{
	"INVALID_IFSC":          {domain.RCASourcePDR, "Verify and correct the beneficiary IFSC code before resubmission.", domain.RCAMedium},
	"SANCTIONED":            {domain.RCASourceACC, "Escalate to compliance; counterparty is sanctions-listed.", domain.RCACritical},
	"SANCTION":              {domain.RCASourceACC, "Escalate to compliance; counterparty is sanctions-listed.", domain.RCACritical},
	"INSUFFICIENT_FUNDS":    {domain.RCASourceBank, "Retry once sender account is funded.", domain.RCAHigh},
	"ACCOUNT_BLOCKED":       {domain.RCASourceBank, "Contact beneficiary bank to unblock the account.", domain.RCAHigh},
	"DAILY_LIMIT_EXCEEDED":  {domain.RCASourcePDR, "Reschedule for the next settlement day or split across rails.", domain.RCAMedium},
	"LIMIT_EXCEEDED":        {domain.RCASourceACC, "Reduce the transaction amount or request a limit override from compliance.", domain.RCAHigh},
	"BANK_UNAVAILABLE":      {domain.RCASourceBank, "Retry after bank API recovers; consider alternate rail.", domain.RCAMedium},
	"INVALID_ACCOUNT":       {domain.RCASourcePDR, "Validate beneficiary account number with the sender.", domain.RCAMedium},
	"INVALID_BENEFICIARY":   {domain.RCASourceACC, "Verify beneficiary details with compliance before resubmission.", domain.RCACritical},
	"KYC_UNVERIFIED":        {domain.RCASourceACC, "Complete beneficiary KYC verification before resubmission.", domain.RCAHigh},
	"POLICY_UNAVAILABLE":    {domain.RCASourceACC, "Retry once the policy evaluator is reachable.", domain.RCAMedium},
	"OUTSIDE_WORKING_HOURS": {domain.RCASourcePDR, "Resubmit within the rail's working-hours window.", domain.RCALow},
	"RAIL_INACTIVE":         {domain.RCASourcePDR, "Select an active rail or wait for this rail to be reactivated.", domain.RCAMedium},
	"AMOUNT_OUT_OF_BOUNDS":  {domain.RCASourcePDR, "Resubmit with an amount within the rail's configured bounds.", domain.RCAMedium},
	"NEW_USER_LIMIT":        {domain.RCASourcePDR, "Split the payment or wait for the new-user limit to lift.", domain.RCAMedium},
	"NOT_INTRABANK":         {domain.RCASourcePDR, "Route via an inter-bank rail; sender and receiver are at different banks.", domain.RCALow},
}

// genericByChannel is the fallback when no issue code matches,
// keyed by the primary rail's channel (spec.md §4.7 rule 3).
var genericByChannel = map[string]causeTemplate{
	"UPI":       {domain.RCASourceBank, "Investigate UPI channel failure with the PSP.", domain.RCAMedium},
	"IMPS":      {domain.RCASourceBank, "Investigate IMPS channel failure with the beneficiary bank.", domain.RCAMedium},
	"NEFT":      {domain.RCASourceBank, "Investigate NEFT batch settlement failure.", domain.RCAMedium},
	"RTGS":      {domain.RCASourceBank, "Investigate RTGS settlement failure.", domain.RCAHigh},
	"INTRABANK": {domain.RCASourceSystem, "Investigate intra-bank transfer failure.", domain.RCALow},
}

var defaultGeneric = causeTemplate{domain.RCASourceSystem, "Manual investigation required; no known pattern matched.", domain.RCAMedium}

// Evidence bundles what RCA reads to diagnose a failed line (spec.md
// §4.7 rule 1).
type Evidence struct {
	LineID        string
	IssueCode     string // primary observed failure code, if any
	PDRIssues     []string
	HasPDR        bool
	HasACC        bool
	HasInvoice    bool
	PrimaryRail   string
}

// Analyzer persists the synthesized RootCause.
type Analyzer struct {
	relStore store.RelationalStore
}

func NewAnalyzer(relStore store.RelationalStore) *Analyzer {
	return &Analyzer{relStore: relStore}
}

func (a *Analyzer) Analyze(ctx context.Context, ev Evidence) (domain.RCAResult, error) {
	tmpl, matched := issueCodeMap[ev.IssueCode]
	if !matched {
		tmpl = genericByChannel[ev.PrimaryRail]
		if tmpl == (causeTemplate{}) {
			tmpl = defaultGeneric
		}
	}

	confidence := 0.5
	if ev.HasPDR {
		confidence += 0.2
	}
	if ev.HasACC {
		confidence += 0.2
	}
	if ev.HasInvoice {
		confidence += 0.1
	}
	if containsVerbatim(ev.PDRIssues, ev.IssueCode) {
		confidence = 0.9
	}
	if confidence > 1 {
		confidence = 1
	}

	result := domain.RCAResult{
		LineID: ev.LineID,
		RootCause: domain.RootCause{
			IssueCode:      orUnknown(ev.IssueCode),
			Source:         tmpl.source,
			Recommendation: tmpl.recommendation,
			Severity:       tmpl.severity,
			Confidence:     confidence,
		},
		AnalysisDetails: map[string]any{
			"matched_fixed_mapping": matched,
			"primary_rail":          ev.PrimaryRail,
		},
	}

	if err := a.relStore.SaveRCAResult(ctx, result); err != nil {
		return domain.RCAResult{}, fmt.Errorf("persist rca result for %s: %w", ev.LineID, err)
	}
	return result, nil
}

func containsVerbatim(issues []string, code string) bool {
	if code == "" {
		return false
	}
	for _, i := range issues {
		if i == code {
			return true
		}
	}
	return false
}

// pdrReasonIssueCode maps a scoring.Filter rejection reason to the
// issue code RCA pattern-matches against (spec.md §4.7 rule 2).
var pdrReasonIssueCode = map[string]string{
	"rail inactive":                        "RAIL_INACTIVE",
	"amount outside rail bounds":           "AMOUNT_OUT_OF_BOUNDS",
	"daily limit exhausted":                "DAILY_LIMIT_EXCEEDED",
	"exceeds new-user limit":                "NEW_USER_LIMIT",
	"Outside working hours":                "OUTSIDE_WORKING_HOURS",
	"sender and receiver not in same bank": "NOT_INTRABANK",
}

// accViolationPriority orders ACC violation codes by severity so the
// most actionable one is reported when several apply to one decision.
var accViolationPriority = []string{"SANCTION", "LIMIT_EXCEEDED", "INVALID_BENEFICIARY", "KYC_UNVERIFIED", "POLICY_UNAVAILABLE"}

// IssueCodeFromACCViolations picks the single most severe violation
// code from an ACCDecision.Reasons list to drive Analyze's pattern
// match, instead of a fixed constant.
func IssueCodeFromACCViolations(reasons []string) string {
	present := make(map[string]bool, len(reasons))
	for _, r := range reasons {
		present[r] = true
	}
	for _, code := range accViolationPriority {
		if present[code] {
			return code
		}
	}
	if len(reasons) > 0 {
		return reasons[0]
	}
	return ""
}

// IssueCodeFromPDRReasons picks a representative issue code from the
// rejection reasons that excluded every rail, for lines that failed
// PDR eligibility rather than execution.
func IssueCodeFromPDRReasons(reasons []domain.FilterReason) string {
	for _, r := range reasons {
		if code, ok := pdrReasonIssueCode[r.Reason]; ok {
			return code
		}
	}
	return ""
}

func orUnknown(code string) string {
	if code == "" {
		return "UNKNOWN"
	}
	return code
}
