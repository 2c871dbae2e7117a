package domain

import "time"

// BatchSource identifies who submitted a batch.
type BatchSource string

const (
	SourceFrontend BatchSource = "FRONTEND"
	SourceBankAPI  BatchSource = "BANK_API"
	SourceInternal BatchSource = "INTERNAL"
)

// Batch is immutable once created (spec.md §3).
type Batch struct {
	BatchID      string      `json:"batch_id"`
	TenantID     string      `json:"tenant_id"`
	Source       BatchSource `json:"source"`
	UploadTS     time.Time   `json:"upload_ts"`
	PolicyVer    string      `json:"policy_version"`
	LineCount    int         `json:"line_count"`
	WorkflowID   string      `json:"workflow_id"`
}

// PaymentType is the business intent category carried on a Line before
// classification overwrites/confirms it.
type PaymentType string

const (
	PaymentPayroll     PaymentType = "PAYROLL"
	PaymentVendor      PaymentType = "VENDOR_PAYMENT"
	PaymentLoan        PaymentType = "LOAN_DISBURSEMENT"
	PaymentUtility     PaymentType = "UTILITY"
	PaymentTax         PaymentType = "TAX"
	PaymentRefund      PaymentType = "REFUND"
	PaymentTransfer    PaymentType = "TRANSFER"
	PaymentUnknown     PaymentType = "UNKNOWN"
)

// Party describes a sender or receiver bank identity.
type Party struct {
	Name    string `json:"name"`
	Account string `json:"account"`
	IFSC    string `json:"ifsc"`
	Bank    string `json:"bank"`
}

// IFSCPrefix returns the first 4 characters used for intra-bank checks.
func (p Party) IFSCPrefix() string {
	if len(p.IFSC) < 4 {
		return p.IFSC
	}
	return p.IFSC[:4]
}

// LineStatus is the exclusive state of a Line (spec.md §3, §4.1).
type LineStatus string

const (
	StatusInitialized LineStatus = "INITIALIZED"
	StatusIngesting   LineStatus = "INGESTING"
	StatusValidating  LineStatus = "VALIDATING"
	StatusClassifying LineStatus = "CLASSIFYING"
	StatusRouting     LineStatus = "ROUTING"
	StatusExecuting   LineStatus = "EXECUTING"
	StatusAuditing    LineStatus = "AUDITING"
	StatusCompleted   LineStatus = "COMPLETED"
	StatusFailed      LineStatus = "FAILED"
	StatusHold        LineStatus = "HOLD"
)

// IsTerminal reports whether a status no longer advances on its own.
func (s LineStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusHold
}

// Line is a single payment instruction within a Batch (spec.md §3).
type Line struct {
	LineID         string            `json:"line_id"`
	BatchID        string            `json:"batch_id"`
	TransactionID  string            `json:"transaction_id"`
	PaymentType    PaymentType       `json:"payment_type"`
	Amount         Amount            `json:"amount"`
	Currency       string            `json:"currency"`
	PurposeCode    string            `json:"purpose_code"`
	Remarks        string            `json:"remarks,omitempty"`
	Sender         Party             `json:"sender"`
	Receiver       Party             `json:"receiver"`
	ScheduleTS     time.Time         `json:"schedule_ts"`
	AdditionalFields map[string]string `json:"additional_fields,omitempty"`
	Status         LineStatus        `json:"status"`
	IsNewSender    bool              `json:"is_new_sender"`
	AccountFlagged bool              `json:"account_flagged"`
}

// RejectedRecord records a row that failed CSV/JSON parsing (spec.md §6).
type RejectedRecord struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
	Raw      string `json:"raw,omitempty"`
}
