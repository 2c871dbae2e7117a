package ingest

import (
	"strings"
	"testing"
)

func TestParseCSVMissingAmountRejectsOnlyThatRow(t *testing.T) {
	csv := strings.Join([]string{
		"beneficiary,amount,purpose,reference",
		"Acme Supplies,5000.00,VENDOR_PAYMENT,REF-001",
		"Beta Traders,7500.00,VENDOR_PAYMENT,REF-002",
		"Gamma Corp,,VENDOR_PAYMENT,REF-003",
	}, "\n")

	res, err := ParseCSV("batch-1", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 parsed lines, got %d", len(res.Lines))
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("expected 1 rejected row, got %d", len(res.Rejected))
	}
	rej := res.Rejected[0]
	if rej.RowIndex != 3 {
		t.Errorf("expected rejected row index 3, got %d", rej.RowIndex)
	}
	if rej.Reason != "missing required field 'amount'" {
		t.Errorf("unexpected rejection reason: %q", rej.Reason)
	}
}

func TestParseCSVUnknownColumnsPreservedAsAdditionalFields(t *testing.T) {
	csv := strings.Join([]string{
		"beneficiary,amount,purpose,reference,employee_id",
		"Jane Doe,50000.00,PAYROLL,REF-010,EMP-42",
	}, "\n")

	res, err := ParseCSV("batch-2", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	if got := res.Lines[0].AdditionalFields["employee_id"]; got != "EMP-42" {
		t.Errorf("expected employee_id preserved, got %q", got)
	}
	if res.Lines[0].TransactionID != "REF-010" {
		t.Errorf("expected reference column to populate TransactionID, got %q", res.Lines[0].TransactionID)
	}
}

func TestParseCSVMissingReferenceRejectsOnlyThatRow(t *testing.T) {
	csv := strings.Join([]string{
		"beneficiary,amount,purpose,reference",
		"Acme Supplies,5000.00,VENDOR_PAYMENT,",
	}, "\n")

	res, err := ParseCSV("batch-ref", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != "missing required field 'reference'" {
		t.Fatalf("unexpected rejection: %+v", res.Rejected)
	}
}

func TestParseCSVAllRowsBadFailsTheBatch(t *testing.T) {
	csv := strings.Join([]string{
		"beneficiary,amount,purpose,reference",
		"Acme,,VENDOR_PAYMENT,REF-001",
	}, "\n")

	_, err := ParseCSV("batch-3", strings.NewReader(csv))
	if err == nil {
		t.Fatal("expected an error when zero rows parse")
	}
}

func TestParseCSVMissingRequiredColumnRejectsWholeBatch(t *testing.T) {
	csv := strings.Join([]string{
		"beneficiary,amount,purpose",
		"Acme,5000.00,VENDOR_PAYMENT",
	}, "\n")

	_, err := ParseCSV("batch-missing-col", strings.NewReader(csv))
	if err == nil {
		t.Fatal("expected an error when the reference column is absent from the header")
	}
}

func TestParseJSONBareArrayAndEnvelopeEquivalent(t *testing.T) {
	array := `[{"beneficiary":"Acme","amount":"1000.00","purpose":"VENDOR_PAYMENT","reference":"REF-001"}]`
	envelope := `{"transactions":[{"beneficiary":"Acme","amount":"1000.00","purpose":"VENDOR_PAYMENT","reference":"REF-001"}]}`

	for _, payload := range []string{array, envelope} {
		res, err := ParseJSON("batch-4", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("ParseJSON(%s): %v", payload, err)
		}
		if len(res.Lines) != 1 {
			t.Fatalf("expected 1 line, got %d", len(res.Lines))
		}
	}
}

func TestParseJSONBeneficiaryAsNestedObject(t *testing.T) {
	payload := `[{"beneficiary":{"name":"Acme","account":"123","ifsc":"HDFC0000099"},"amount":"1000.00","purpose":"VENDOR_PAYMENT","reference":"REF-002"}]`

	res, err := ParseJSON("batch-nested", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	recv := res.Lines[0].Receiver
	if recv.Name != "Acme" || recv.Account != "123" || recv.IFSC != "HDFC0000099" {
		t.Errorf("expected nested beneficiary fields to populate Receiver, got %+v", recv)
	}
}

func TestParseJSONMissingPurposeRejected(t *testing.T) {
	payload := `[{"beneficiary":"Acme","amount":"1000.00","reference":"REF-001"},
	             {"beneficiary":"Beta","amount":"2000.00","purpose":"VENDOR_PAYMENT","reference":"REF-002"}]`

	res, err := ParseJSON("batch-5", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 parsed line, got %d", len(res.Lines))
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != "missing required field 'purpose'" {
		t.Fatalf("unexpected rejection: %+v", res.Rejected)
	}
}
