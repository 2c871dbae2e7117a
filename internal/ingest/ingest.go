// Package ingest parses an uploaded batch file into domain.Line
// records (spec.md §6). It accepts both CSV and JSON payloads, rejects
// malformed rows individually rather than failing the whole batch, and
// preserves any columns/fields it doesn't recognize into each line's
// AdditionalFields. Grounded on the teacher's
// handlers.ComplianceHandler CSV export/import shape (encoding/csv +
// encoding/json side by side).
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/idgen"
)

// requiredColumns are the CSV fields without which a row cannot become
// a Line (spec.md §6): beneficiary, amount, purpose, reference.
// beneficiary_account/beneficiary_ifsc are optional enrichment columns
// preserved when present, not required for a row to parse.
var requiredColumns = []string{"beneficiary", "amount", "purpose", "reference"}

// Result is the outcome of parsing one uploaded batch.
type Result struct {
	Lines    []domain.Line
	Rejected []domain.RejectedRecord
}

// ParseCSV parses a comma-separated batch. The header row names the
// columns; any column beyond requiredColumns (and the optional
// sender_*, beneficiary_account, beneficiary_ifsc, currency and remarks
// columns) is preserved verbatim into each line's AdditionalFields. A batch with at least one parseable row succeeds
// even if other rows are rejected (spec.md §6 edge case).
func ParseCSV(batchID string, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Result{}, fmt.Errorf("empty csv batch")
		}
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := colIndex[c]; !ok {
			return Result{}, fmt.Errorf("missing required column %q", c)
		}
	}

	var res Result
	rowIndex := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		if err != nil {
			res.Rejected = append(res.Rejected, domain.RejectedRecord{RowIndex: rowIndex, Reason: err.Error()})
			continue
		}

		line, reason := csvRowToLine(batchID, header, colIndex, record)
		if reason != "" {
			res.Rejected = append(res.Rejected, domain.RejectedRecord{RowIndex: rowIndex, Reason: reason, Raw: strings.Join(record, ",")})
			continue
		}
		res.Lines = append(res.Lines, line)
	}

	if len(res.Lines) == 0 {
		return res, fmt.Errorf("no parseable rows in batch")
	}
	return res, nil
}

func csvRowToLine(batchID string, header []string, colIndex map[string]int, record []string) (domain.Line, string) {
	get := func(col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	amountStr := get("amount")
	if amountStr == "" {
		return domain.Line{}, "missing required field 'amount'"
	}
	amount, err := domain.NewAmount(amountStr)
	if err != nil || amount.LessThan(domain.ZeroAmount) || amount.IsZero() {
		return domain.Line{}, fmt.Sprintf("invalid amount %q", amountStr)
	}

	purpose := get("purpose")
	if purpose == "" {
		return domain.Line{}, "missing required field 'purpose'"
	}
	beneficiary := get("beneficiary")
	if beneficiary == "" {
		return domain.Line{}, "missing required field 'beneficiary'"
	}
	reference := get("reference")
	if reference == "" {
		return domain.Line{}, "missing required field 'reference'"
	}

	additional := make(map[string]string)
	known := map[string]bool{
		"beneficiary": true, "beneficiary_account": true, "beneficiary_ifsc": true,
		"amount": true, "purpose": true, "reference": true, "remarks": true,
		"sender_name": true, "sender_account": true, "sender_ifsc": true, "currency": true,
	}
	for _, h := range header {
		col := strings.ToLower(strings.TrimSpace(h))
		if known[col] {
			continue
		}
		additional[col] = get(col)
	}

	currency := get("currency")
	if currency == "" {
		currency = "INR"
	}

	return domain.Line{
		LineID:        idgen.LineID(),
		BatchID:       batchID,
		TransactionID: reference,
		Amount:        amount,
		Currency:      currency,
		PurposeCode:   purpose,
		Remarks:       get("remarks"),
		Sender: domain.Party{
			Name:    get("sender_name"),
			Account: get("sender_account"),
			IFSC:    get("sender_ifsc"),
		},
		Receiver: domain.Party{
			Name:    beneficiary,
			Account: get("beneficiary_account"),
			IFSC:    get("beneficiary_ifsc"),
		},
		AdditionalFields: additional,
		Status:           domain.StatusInitialized,
	}, ""
}

// jsonTransaction is the wire shape of one JSON-contract transaction.
// Extra is not populated by decoding; keys outside the known shape are
// collected into the line's AdditionalFields by jsonRowToLine. beneficiary
// is accepted either as a bare name string or as a nested
// {name, account, ifsc} object, per spec.md §6's JSON contract.
type jsonTransaction struct {
	Beneficiary   jsonParty         `json:"beneficiary"`
	SenderName    string            `json:"sender_name"`
	SenderAccount string            `json:"sender_account"`
	SenderIFSC    string            `json:"sender_ifsc"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	Purpose       string            `json:"purpose"`
	Reference     string            `json:"reference"`
	Remarks       string            `json:"remarks"`
	Extra         map[string]string `json:"-"`
}

// jsonParty accepts the beneficiary field as either a bare name string
// or a {name, account, ifsc} object.
type jsonParty struct {
	Name    string `json:"name"`
	Account string `json:"account"`
	IFSC    string `json:"ifsc"`
}

func (p *jsonParty) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		p.Name = name
		return nil
	}
	type alias jsonParty
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = jsonParty(a)
	return nil
}

type jsonEnvelope struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// ParseJSON parses either {"transactions": [...]} or a bare JSON array
// of transaction objects (spec.md §6).
func ParseJSON(batchID string, r io.Reader) (Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read json batch: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var rows []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return Result{}, fmt.Errorf("parse json array: %w", err)
		}
	} else {
		var env jsonEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Result{}, fmt.Errorf("parse json envelope: %w", err)
		}
		rows = env.Transactions
	}

	var res Result
	for i, row := range rows {
		line, reason := jsonRowToLine(batchID, row)
		if reason != "" {
			res.Rejected = append(res.Rejected, domain.RejectedRecord{RowIndex: i + 1, Reason: reason, Raw: string(row)})
			continue
		}
		res.Lines = append(res.Lines, line)
	}

	if len(res.Lines) == 0 {
		return res, fmt.Errorf("no parseable rows in batch")
	}
	return res, nil
}

func jsonRowToLine(batchID string, row json.RawMessage) (domain.Line, string) {
	var tx jsonTransaction
	if err := json.Unmarshal(row, &tx); err != nil {
		return domain.Line{}, fmt.Sprintf("malformed transaction: %v", err)
	}

	var everything map[string]json.RawMessage
	_ = json.Unmarshal(row, &everything)
	known := map[string]bool{
		"beneficiary": true,
		"sender_name": true, "sender_account": true, "sender_ifsc": true,
		"amount": true, "currency": true, "purpose": true, "reference": true, "remarks": true,
	}
	additional := make(map[string]string)
	for k, v := range everything {
		if known[k] {
			continue
		}
		additional[k] = strings.Trim(string(v), `"`)
	}

	if tx.Amount == "" {
		return domain.Line{}, "missing required field 'amount'"
	}
	amount, err := domain.NewAmount(tx.Amount)
	if err != nil || amount.IsZero() {
		return domain.Line{}, fmt.Sprintf("invalid amount %q", tx.Amount)
	}
	if tx.Purpose == "" {
		return domain.Line{}, "missing required field 'purpose'"
	}
	if tx.Beneficiary.Name == "" {
		return domain.Line{}, "missing required field 'beneficiary'"
	}
	if tx.Reference == "" {
		return domain.Line{}, "missing required field 'reference'"
	}

	currency := tx.Currency
	if currency == "" {
		currency = "INR"
	}

	return domain.Line{
		LineID:        idgen.LineID(),
		BatchID:       batchID,
		TransactionID: tx.Reference,
		Amount:        amount,
		Currency:      currency,
		PurposeCode:   tx.Purpose,
		Remarks:       tx.Remarks,
		Sender: domain.Party{
			Name:    tx.SenderName,
			Account: tx.SenderAccount,
			IFSC:    tx.SenderIFSC,
		},
		Receiver: domain.Party{
			Name:    tx.Beneficiary.Name,
			Account: tx.Beneficiary.Account,
			IFSC:    tx.Beneficiary.IFSC,
		},
		AdditionalFields: additional,
		Status:           domain.StatusInitialized,
	}, ""
}
