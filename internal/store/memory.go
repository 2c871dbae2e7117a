package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// MemoryRelationalStore is an in-process RelationalStore, grounded on
// the teacher's compliance/repository map+mutex idiom. It is the
// default store for tests and single-process development; Postgres
// (postgres.go) is used in multi-process deployments.
type MemoryRelationalStore struct {
	mu sync.RWMutex

	batches       map[string]domain.Batch
	lines         map[string]domain.Line
	linesByBatch  map[string][]string
	intents       map[string]domain.IntentResult
	accDecisions  map[string][]domain.ACCDecision // lineID -> append-only history
	pdrDecisions  map[string]domain.PDRDecision
	ledgerByRef   map[string][]domain.LedgerEntry
	ledgerByID    map[string]int // entryID -> index within ledgerByRef[reference]
	arlResults    map[string]domain.ARLResult
	rcaResults    map[string]domain.RCAResult
	crrakReports  map[string]domain.CRRAKReport
	railConfigs   map[string]domain.RailConfig
	railPerf      map[string][]domain.RailPerformance
	auditByBatch  map[string][]domain.AuditLogEvent
}

func NewMemoryRelationalStore() *MemoryRelationalStore {
	return &MemoryRelationalStore{
		batches:      make(map[string]domain.Batch),
		lines:        make(map[string]domain.Line),
		linesByBatch: make(map[string][]string),
		intents:      make(map[string]domain.IntentResult),
		accDecisions: make(map[string][]domain.ACCDecision),
		pdrDecisions: make(map[string]domain.PDRDecision),
		ledgerByRef:  make(map[string][]domain.LedgerEntry),
		ledgerByID:   make(map[string]int),
		arlResults:   make(map[string]domain.ARLResult),
		rcaResults:   make(map[string]domain.RCAResult),
		crrakReports: make(map[string]domain.CRRAKReport),
		railConfigs:  make(map[string]domain.RailConfig),
		railPerf:     make(map[string][]domain.RailPerformance),
		auditByBatch: make(map[string][]domain.AuditLogEvent),
	}
}

func (s *MemoryRelationalStore) SaveBatch(ctx context.Context, b domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.BatchID] = b
	return nil
}

func (s *MemoryRelationalStore) GetBatch(ctx context.Context, batchID string) (domain.Batch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	return b, ok, nil
}

func (s *MemoryRelationalStore) SaveLine(ctx context.Context, l domain.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lines[l.LineID]; !exists {
		s.linesByBatch[l.BatchID] = append(s.linesByBatch[l.BatchID], l.LineID)
	}
	s.lines[l.LineID] = l
	return nil
}

func (s *MemoryRelationalStore) GetLine(ctx context.Context, lineID string) (domain.Line, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[lineID]
	return l, ok, nil
}

func (s *MemoryRelationalStore) ListLinesByBatch(ctx context.Context, batchID string) ([]domain.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.linesByBatch[batchID]
	out := make([]domain.Line, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.lines[id])
	}
	return out, nil
}

func (s *MemoryRelationalStore) UpdateLineStatus(ctx context.Context, lineID string, status domain.LineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return fmt.Errorf("line not found: %s", lineID)
	}
	l.Status = status
	s.lines[lineID] = l
	return nil
}

func (s *MemoryRelationalStore) SaveIntentResult(ctx context.Context, r domain.IntentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[r.LineID] = r
	return nil
}

func (s *MemoryRelationalStore) GetIntentResult(ctx context.Context, lineID string) (domain.IntentResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.intents[lineID]
	return r, ok, nil
}

func (s *MemoryRelationalStore) SaveACCDecision(ctx context.Context, d domain.ACCDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.accDecisions[d.LineID]
	if d.Current {
		for i := range hist {
			hist[i].Current = false
		}
	}
	s.accDecisions[d.LineID] = append(hist, d)
	return nil
}

func (s *MemoryRelationalStore) GetCurrentACCDecision(ctx context.Context, lineID string) (domain.ACCDecision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.accDecisions[lineID]
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].Current {
			return hist[i], true, nil
		}
	}
	return domain.ACCDecision{}, false, nil
}

func (s *MemoryRelationalStore) ListACCDecisions(ctx context.Context, lineID string) ([]domain.ACCDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ACCDecision, len(s.accDecisions[lineID]))
	copy(out, s.accDecisions[lineID])
	return out, nil
}

func (s *MemoryRelationalStore) SavePDRDecision(ctx context.Context, d domain.PDRDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pdrDecisions[d.LineID] = d
	return nil
}

func (s *MemoryRelationalStore) GetPDRDecision(ctx context.Context, lineID string) (domain.PDRDecision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.pdrDecisions[lineID]
	return d, ok, nil
}

func (s *MemoryRelationalStore) SaveLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.ledgerByRef[e.Reference] {
		if existing.EntryID == e.EntryID {
			s.ledgerByRef[e.Reference][i] = e
			return nil
		}
	}
	s.ledgerByRef[e.Reference] = append(s.ledgerByRef[e.Reference], e)
	s.ledgerByID[e.EntryID] = len(s.ledgerByRef[e.Reference]) - 1
	return nil
}

func (s *MemoryRelationalStore) ListLedgerEntriesByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LedgerEntry, len(s.ledgerByRef[reference]))
	copy(out, s.ledgerByRef[reference])
	return out, nil
}

func (s *MemoryRelationalStore) UpdateLedgerEntryState(ctx context.Context, entryID string, state domain.LedgerEntryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, entries := range s.ledgerByRef {
		for i, e := range entries {
			if e.EntryID == entryID {
				entries[i].State = state
				s.ledgerByRef[ref] = entries
				return nil
			}
		}
	}
	return fmt.Errorf("ledger entry not found: %s", entryID)
}

func (s *MemoryRelationalStore) SaveARLResult(ctx context.Context, r domain.ARLResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arlResults[r.LineID] = r
	return nil
}

func (s *MemoryRelationalStore) GetARLResult(ctx context.Context, lineID string) (domain.ARLResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.arlResults[lineID]
	return r, ok, nil
}

func (s *MemoryRelationalStore) SaveRCAResult(ctx context.Context, r domain.RCAResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcaResults[r.LineID] = r
	return nil
}

func (s *MemoryRelationalStore) GetRCAResult(ctx context.Context, lineID string) (domain.RCAResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rcaResults[lineID]
	return r, ok, nil
}

func (s *MemoryRelationalStore) SaveCRRAKReport(ctx context.Context, r domain.CRRAKReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crrakReports[r.LineID] = r
	return nil
}

func (s *MemoryRelationalStore) GetCRRAKReport(ctx context.Context, lineID string) (domain.CRRAKReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.crrakReports[lineID]
	return r, ok, nil
}

func (s *MemoryRelationalStore) UpsertRailConfig(ctx context.Context, rc domain.RailConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.railConfigs[rc.RailName] = rc
	return nil
}

func (s *MemoryRelationalStore) ListRailConfigs(ctx context.Context) ([]domain.RailConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RailConfig, 0, len(s.railConfigs))
	for _, rc := range s.railConfigs {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RailName < out[j].RailName })
	return out, nil
}

func (s *MemoryRelationalStore) GetRailConfig(ctx context.Context, railName string) (domain.RailConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.railConfigs[railName]
	return rc, ok, nil
}

func (s *MemoryRelationalStore) AppendRailPerformance(ctx context.Context, p domain.RailPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.railPerf[p.RailName] = append(s.railPerf[p.RailName], p)
	return nil
}

func (s *MemoryRelationalStore) ListRecentRailPerformance(ctx context.Context, railName string, limit int) ([]domain.RailPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.railPerf[railName]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]domain.RailPerformance, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

func (s *MemoryRelationalStore) AppendAuditEvent(ctx context.Context, event domain.AuditLogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditByBatch[event.BatchID] = append(s.auditByBatch[event.BatchID], event)
	return nil
}

func (s *MemoryRelationalStore) ListAuditEvents(ctx context.Context, batchID string) ([]domain.AuditLogEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLogEvent, len(s.auditByBatch[batchID]))
	copy(out, s.auditByBatch[batchID])
	return out, nil
}

func (s *MemoryRelationalStore) LastSeq(ctx context.Context, batchID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.auditByBatch[batchID]
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}
