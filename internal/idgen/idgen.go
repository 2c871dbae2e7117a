// Package idgen generates stable unique identifiers for batches,
// workflows, lines, and ledger entries.
package idgen

import "github.com/google/uuid"

func BatchID() string    { return "bat_" + uuid.New().String() }
func WorkflowID() string { return "wf_" + uuid.New().String() }
func LineID() string     { return "ln_" + uuid.New().String() }
func EntryID() string    { return "le_" + uuid.New().String() }
func ReportRef() string  { return "rpt_" + uuid.New().String() }
