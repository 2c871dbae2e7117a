// Package auditlog implements the append-only, gap-free-per-batch audit
// trail described in spec.md §3 (invariant 6) and §5 (ordering
// guarantees). It is adapted from the teacher's logging.AuditLogger but
// keys sequence numbers by batch instead of by a global event type, and
// writes each event synchronously through a pluggable Appender rather
// than buffering it for a single local file.
package auditlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// Appender persists one audit event. Implementations must not reorder
// or drop events; the relational store adapter implements this against
// the `audit_log` table (spec.md §6).
type Appender interface {
	AppendAuditEvent(ctx context.Context, event domain.AuditLogEvent) error
}

type batchSeq struct {
	mu   sync.Mutex
	next int64
}

// Log serializes sequence-number assignment per batch_id so that
// `emit(audit_event)` for step N happens-before any state write for
// step N+1 becomes visible (spec.md §5).
type Log struct {
	appender Appender

	mu      sync.Mutex
	batches map[string]*batchSeq
}

func New(appender Appender) *Log {
	return &Log{
		appender: appender,
		batches:  make(map[string]*batchSeq),
	}
}

func (l *Log) seqFor(batchID string) *batchSeq {
	l.mu.Lock()
	defer l.mu.Unlock()
	bs, ok := l.batches[batchID]
	if !ok {
		bs = &batchSeq{next: 1}
		l.batches[batchID] = bs
	}
	return bs
}

// Append assigns the next gap-free sequence number for batchID and
// persists the event. Callers must treat a returned error as meaning
// the event was NOT durably appended; the caller's step should be
// retried or downgraded to SystemError per spec.md §7.
func (l *Log) Append(ctx context.Context, batchID, lineID, action string, actor domain.AuditActor, detail string) (domain.AuditLogEvent, error) {
	bs := l.seqFor(batchID)

	bs.mu.Lock()
	defer bs.mu.Unlock()

	event := domain.AuditLogEvent{
		Seq:        bs.next,
		BatchID:    batchID,
		LineID:     lineID,
		Action:     action,
		Actor:      actor,
		DetailBlob: detail,
		TS:         time.Now().UTC(),
	}

	if err := l.appender.AppendAuditEvent(ctx, event); err != nil {
		return domain.AuditLogEvent{}, fmt.Errorf("append audit event batch=%s seq=%d: %w", batchID, event.Seq, err)
	}

	bs.next++
	return event, nil
}

// SeedFrom initializes the in-memory sequence cursor for a batch from
// its last durable seq, for recovery on restart (spec.md §4.1: "An
// agent crash mid-step is recovered on restart by reading the last
// durable state").
func (l *Log) SeedFrom(batchID string, lastSeq int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches[batchID] = &batchSeq{next: lastSeq + 1}
}
