package domain

import "time"

// ACCDecisionVerdict is the compliance adapter's outcome (spec.md §3, §4.3).
type ACCDecisionVerdict string

const (
	ACCPass ACCDecisionVerdict = "PASS"
	ACCHold ACCDecisionVerdict = "HOLD"
	ACCFail ACCDecisionVerdict = "FAIL"
)

// ACCDecision is the at-most-one-current compliance verdict for a Line.
type ACCDecision struct {
	LineID            string             `json:"line_id"`
	Decision          ACCDecisionVerdict `json:"decision"`
	PolicyVersion     string             `json:"policy_version"`
	Reasons           []string           `json:"reasons"`
	EvidenceRefs      []string           `json:"evidence_refs"`
	CompliancePenalty float64            `json:"compliance_penalty"` // 0-100
	RiskScore         float64            `json:"risk_score"`         // 0-100
	IssuedAt          time.Time          `json:"issued_at"`
	Current           bool               `json:"current"`
}

// RailType groups settlement dialects (spec.md §3).
type RailType string

const (
	RailInstant   RailType = "INSTANT"
	RailRealtime  RailType = "REALTIME"
	RailBatchType RailType = "BATCH"
	RailIntrabank RailType = "INTRABANK"
)

// WorkingHours bounds when a rail accepts transactions.
type WorkingHours struct {
	Start    int // minutes since midnight, local
	End      int // minutes since midnight, local
	Weekdays map[time.Weekday]bool
}

// RailConfig is static+dynamic per-rail configuration (spec.md §3).
type RailConfig struct {
	RailName             string       `json:"rail_name"`
	RailType             RailType     `json:"rail_type"`
	MinAmount            Amount       `json:"min_amount"`
	MaxAmount            Amount       `json:"max_amount"`
	NewUserLimit         Amount       `json:"new_user_limit"`
	WorkingHours         WorkingHours `json:"working_hours"`
	AvgETAMs             int          `json:"avg_eta_ms"`
	CostBps              float64      `json:"cost_bps"`
	SuccessProbability   float64      `json:"success_probability"`
	SettlementType       string       `json:"settlement_type"`
	SettlementCertainty  float64      `json:"settlement_certainty"`
	DailyLimit           Amount       `json:"daily_limit"`
	DailyLimitRemaining  Amount       `json:"daily_limit_remaining"`
	IsActive             bool         `json:"is_active"`
}

// PDRExecutionStatus tracks a PDR decision's progress through the cascade.
type PDRExecutionStatus string

const (
	PDRPending   PDRExecutionStatus = "PENDING"
	PDRExecuting PDRExecutionStatus = "EXECUTING"
	PDRSuccess   PDRExecutionStatus = "SUCCESS"
	PDRFailed    PDRExecutionStatus = "FAILED"
)

// RankedRail is one entry of a PDR fallback list (rail, score).
type RankedRail struct {
	RailName string  `json:"rail_name"`
	Score    float64 `json:"score"`
}

// FeatureSnapshot captures raw+normalized features for one rail, plus
// the top-3 weighted contributing terms, for explainability (spec.md §4.4.6).
type FeatureSnapshot struct {
	RailName       string             `json:"rail_name"`
	Raw            map[string]float64 `json:"raw"`
	Normalized     map[string]float64 `json:"normalized"`
	TopTerms       []WeightedTerm     `json:"top_terms,omitempty"`
}

type WeightedTerm struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
	Value   float64 `json:"value"`
	Term    float64 `json:"term"`
}

// FilterReason explains why a rail was excluded from eligibility.
type FilterReason struct {
	RailName string `json:"rail_name"`
	Reason   string `json:"reason"`
}

// PDRDecision is the routing decision and execution outcome for a Line
// (spec.md §3, §4.4).
type PDRDecision struct {
	LineID            string             `json:"line_id"`
	PrimaryRail       string             `json:"primary_rail"`
	PrimaryScore      float64            `json:"primary_score"`
	FallbackRails     []RankedRail       `json:"fallback_rails"`
	FeatureSnapshots  []FeatureSnapshot  `json:"feature_snapshot"`
	WeightSnapshot    map[string]float64 `json:"weight_snapshot"`
	FilteredOut       []FilterReason     `json:"filtered_out"`
	ExecutionStatus   PDRExecutionStatus `json:"execution_status"`
	CurrentAttemptRail string            `json:"current_attempt_rail,omitempty"`
	AttemptCount      int                `json:"attempt_count"`
	FinalRailUsed     string             `json:"final_rail_used,omitempty"`
	FinalUTR          string             `json:"final_utr,omitempty"`
	FinalStatus       PDRExecutionStatus `json:"final_status"`
	DecidedAt         time.Time          `json:"decided_at"`
}

// RailPerformance is an append-only record of one execution attempt
// (spec.md §3).
type RailPerformance struct {
	RailName     string    `json:"rail_name"`
	LineID       string    `json:"line_id"`
	AttemptNo    int       `json:"attempt_no"`
	ActualETAMs  int       `json:"actual_eta_ms"`
	Success      bool      `json:"success"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	InitiatedAt  time.Time `json:"initiated_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// LedgerSide distinguishes debit/credit entries.
type LedgerSide string

const (
	SideDebit  LedgerSide = "DEBIT"
	SideCredit LedgerSide = "CREDIT"
)

// LedgerEntryState advances monotonically (spec.md §3, §8).
type LedgerEntryState string

const (
	LedgerPending    LedgerEntryState = "PENDING"
	LedgerPosted     LedgerEntryState = "POSTED"
	LedgerReconciled LedgerEntryState = "RECONCILED"
)

// LedgerEntry is created on execution by the rail executor (spec.md §3).
type LedgerEntry struct {
	EntryID   string           `json:"entry_id"`
	Account   string           `json:"account"`
	Side      LedgerSide       `json:"side"`
	Amount    Amount           `json:"amount"`
	Currency  string           `json:"currency"`
	Reference string           `json:"reference"` // batch_id+line_id
	UTR       string           `json:"utr"`
	TS        time.Time        `json:"ts"`
	State     LedgerEntryState `json:"state"`
}

// ARLState is the reconciliation verdict (spec.md §3, §4.6).
type ARLState string

const (
	ARLReconciled ARLState = "RECONCILED"
	ARLPartial    ARLState = "PARTIAL"
	ARLFailed     ARLState = "FAILED"
)

type DiscrepancySeverity string

const (
	SeverityLow      DiscrepancySeverity = "LOW"
	SeverityMedium   DiscrepancySeverity = "MEDIUM"
	SeverityHigh     DiscrepancySeverity = "HIGH"
	SeverityCritical DiscrepancySeverity = "CRITICAL"
)

type Discrepancy struct {
	Code     string              `json:"code"`
	Severity DiscrepancySeverity `json:"severity"`
	Detail   string              `json:"detail"`
}

// ARLResult is the reconciliation outcome for a Line (spec.md §3).
type ARLResult struct {
	LineID        string              `json:"line_id"`
	State         ARLState            `json:"state"`
	MatchedCount  int                 `json:"matched_count"`
	TotalCount    int                 `json:"total_count"`
	Discrepancies []Discrepancy       `json:"discrepancies"`
	Score         float64             `json:"score"`
}

// RCASource names where a root cause was diagnosed.
type RCASource string

const (
	RCASourcePDR    RCASource = "PDR_VALIDATION"
	RCASourceACC    RCASource = "ACC_COMPLIANCE"
	RCASourceBank   RCASource = "BANK_API"
	RCASourceSystem RCASource = "SYSTEM"
)

type RCASeverity string

const (
	RCALow      RCASeverity = "LOW"
	RCAMedium   RCASeverity = "MEDIUM"
	RCAHigh     RCASeverity = "HIGH"
	RCACritical RCASeverity = "CRITICAL"
)

// RootCause is the synthesized diagnosis for a failed Line (spec.md §3, §4.7).
type RootCause struct {
	IssueCode      string      `json:"issue_code"`
	Source         RCASource   `json:"source"`
	Recommendation string      `json:"recommendation"`
	Severity       RCASeverity `json:"severity"`
	Confidence     float64     `json:"confidence"`
}

// RCAResult wraps the RootCause plus supporting narrative (spec.md §3).
type RCAResult struct {
	LineID          string         `json:"line_id"`
	RootCause       RootCause      `json:"root_cause"`
	AnalysisDetails map[string]any `json:"analysis_details"`
}

type ComplianceStatus string

const (
	Compliant    ComplianceStatus = "COMPLIANT"
	PendingReview ComplianceStatus = "PENDING"
	NonCompliant ComplianceStatus = "NON_COMPLIANT"
)

// RiskAssessment is CRRAK's 4-dimensional risk score (spec.md §3, §4.8).
type RiskAssessment struct {
	Overall      float64 `json:"overall"`
	Transaction  float64 `json:"transaction"`
	Counterparty float64 `json:"counterparty"`
	Operational  float64 `json:"operational"`
}

type AuditTrailEvent struct {
	TS     time.Time `json:"ts"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail"`
}

// CRRAKReport is the regulator-facing record (spec.md §3, §4.8).
type CRRAKReport struct {
	LineID           string            `json:"line_id"`
	ComplianceStatus ComplianceStatus  `json:"compliance_status"`
	ComplianceScore  float64           `json:"compliance_score"`
	SanctionsClear   bool              `json:"sanctions_clear"`
	KYCVerified      bool              `json:"kyc_verified"`
	Risk             RiskAssessment    `json:"risk"`
	RiskFactors      []string          `json:"risk_factors"`
	AuditTrail       []AuditTrailEvent `json:"audit_trail"`
	Recommendations  []string          `json:"recommendations"`
	ReportRef        string            `json:"report_ref"`
	IssuedAt         time.Time         `json:"issued_at"`
}

// AuditActor names who appended an audit log event.
type AuditActor string

const (
	ActorMCP   AuditActor = "MCP"
	ActorACC   AuditActor = "ACC"
	ActorPDR   AuditActor = "PDR"
	ActorARL   AuditActor = "ARL"
	ActorRCA   AuditActor = "RCA"
	ActorCRRAK AuditActor = "CRRAK"
	ActorBank  AuditActor = "BANK"
)

// AuditLogEvent is one append-only, gap-free-per-batch audit record
// (spec.md §3, invariant 6).
type AuditLogEvent struct {
	Seq       int64      `json:"seq"`
	BatchID   string     `json:"batch_id"`
	LineID    string     `json:"line_id,omitempty"`
	Action    string     `json:"action"`
	Actor     AuditActor `json:"actor"`
	DetailBlob string    `json:"detail_blob,omitempty"`
	TS        time.Time  `json:"ts"`
}
