package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

// PostgresRelationalStore implements RelationalStore against the 12
// logical tables of spec.md §6 using jackc/pgx directly (no ORM),
// following the teacher's payments.Repository wiring style of one
// pool shared across narrow, hand-written queries.
type PostgresRelationalStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRelationalStore(ctx context.Context, dsn string) (*PostgresRelationalStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRelationalStore{pool: pool}, nil
}

func (s *PostgresRelationalStore) Close() { s.pool.Close() }

func (s *PostgresRelationalStore) SaveBatch(ctx context.Context, b domain.Batch) error {
	const q = `
		INSERT INTO batches (batch_id, tenant_id, source, upload_ts, policy_version, line_count, workflow_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (batch_id) DO UPDATE SET line_count = EXCLUDED.line_count`
	_, err := s.pool.Exec(ctx, q, b.BatchID, b.TenantID, b.Source, b.UploadTS, b.PolicyVer, b.LineCount, b.WorkflowID)
	return err
}

func (s *PostgresRelationalStore) GetBatch(ctx context.Context, batchID string) (domain.Batch, bool, error) {
	const q = `SELECT batch_id, tenant_id, source, upload_ts, policy_version, line_count, workflow_id FROM batches WHERE batch_id = $1`
	var b domain.Batch
	err := s.pool.QueryRow(ctx, q, batchID).Scan(&b.BatchID, &b.TenantID, &b.Source, &b.UploadTS, &b.PolicyVer, &b.LineCount, &b.WorkflowID)
	if err == pgx.ErrNoRows {
		return domain.Batch{}, false, nil
	}
	return b, err == nil, err
}

func (s *PostgresRelationalStore) SaveLine(ctx context.Context, l domain.Line) error {
	extra, err := json.Marshal(l.AdditionalFields)
	if err != nil {
		return fmt.Errorf("marshal additional_fields: %w", err)
	}
	const q = `
		INSERT INTO lines (line_id, batch_id, transaction_id, payment_type, amount, currency, purpose_code,
			remarks, sender, receiver, schedule_ts, additional_fields, status, is_new_sender, account_flagged)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (line_id) DO UPDATE SET status = EXCLUDED.status`
	sender, _ := json.Marshal(l.Sender)
	receiver, _ := json.Marshal(l.Receiver)
	_, err = s.pool.Exec(ctx, q, l.LineID, l.BatchID, l.TransactionID, l.PaymentType, l.Amount.String(), l.Currency,
		l.PurposeCode, l.Remarks, sender, receiver, l.ScheduleTS, extra, l.Status, l.IsNewSender, l.AccountFlagged)
	return err
}

func (s *PostgresRelationalStore) GetLine(ctx context.Context, lineID string) (domain.Line, bool, error) {
	lines, err := s.queryLines(ctx, `WHERE line_id = $1`, lineID)
	if err != nil || len(lines) == 0 {
		return domain.Line{}, false, err
	}
	return lines[0], true, nil
}

func (s *PostgresRelationalStore) ListLinesByBatch(ctx context.Context, batchID string) ([]domain.Line, error) {
	return s.queryLines(ctx, `WHERE batch_id = $1 ORDER BY line_id`, batchID)
}

func (s *PostgresRelationalStore) queryLines(ctx context.Context, where string, args ...any) ([]domain.Line, error) {
	q := `SELECT line_id, batch_id, transaction_id, payment_type, amount, currency, purpose_code,
		remarks, sender, receiver, schedule_ts, additional_fields, status, is_new_sender, account_flagged
		FROM lines ` + where
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Line
	for rows.Next() {
		var l domain.Line
		var amountStr string
		var sender, receiver, extra []byte
		if err := rows.Scan(&l.LineID, &l.BatchID, &l.TransactionID, &l.PaymentType, &amountStr, &l.Currency,
			&l.PurposeCode, &l.Remarks, &sender, &receiver, &l.ScheduleTS, &extra, &l.Status, &l.IsNewSender, &l.AccountFlagged); err != nil {
			return nil, err
		}
		amt, err := domain.NewAmount(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse amount for line %s: %w", l.LineID, err)
		}
		l.Amount = amt
		_ = json.Unmarshal(sender, &l.Sender)
		_ = json.Unmarshal(receiver, &l.Receiver)
		_ = json.Unmarshal(extra, &l.AdditionalFields)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) UpdateLineStatus(ctx context.Context, lineID string, status domain.LineStatus) error {
	ct, err := s.pool.Exec(ctx, `UPDATE lines SET status = $2 WHERE line_id = $1`, lineID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("line not found: %s", lineID)
	}
	return nil
}

func (s *PostgresRelationalStore) SaveIntentResult(ctx context.Context, r domain.IntentResult) error {
	const q = `
		INSERT INTO intent_results (line_id, intent, match_kind, risk_score, confidence)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (line_id) DO UPDATE SET intent = EXCLUDED.intent, match_kind = EXCLUDED.match_kind,
			risk_score = EXCLUDED.risk_score, confidence = EXCLUDED.confidence`
	_, err := s.pool.Exec(ctx, q, r.LineID, r.Intent, r.MatchKind, r.RiskScore, r.Confidence)
	return err
}

func (s *PostgresRelationalStore) GetIntentResult(ctx context.Context, lineID string) (domain.IntentResult, bool, error) {
	const q = `SELECT line_id, intent, match_kind, risk_score, confidence FROM intent_results WHERE line_id = $1`
	var r domain.IntentResult
	err := s.pool.QueryRow(ctx, q, lineID).Scan(&r.LineID, &r.Intent, &r.MatchKind, &r.RiskScore, &r.Confidence)
	if err == pgx.ErrNoRows {
		return domain.IntentResult{}, false, nil
	}
	return r, err == nil, err
}

func (s *PostgresRelationalStore) SaveACCDecision(ctx context.Context, d domain.ACCDecision) error {
	reasons, _ := json.Marshal(d.Reasons)
	evidence, _ := json.Marshal(d.EvidenceRefs)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if d.Current {
		if _, err := tx.Exec(ctx, `UPDATE acc_decisions SET current = false WHERE line_id = $1`, d.LineID); err != nil {
			return err
		}
	}
	const q = `
		INSERT INTO acc_decisions (line_id, decision, policy_version, reasons, evidence_refs,
			compliance_penalty, risk_score, issued_at, current)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := tx.Exec(ctx, q, d.LineID, d.Decision, d.PolicyVersion, reasons, evidence,
		d.CompliancePenalty, d.RiskScore, d.IssuedAt, d.Current); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresRelationalStore) GetCurrentACCDecision(ctx context.Context, lineID string) (domain.ACCDecision, bool, error) {
	const q = `SELECT line_id, decision, policy_version, reasons, evidence_refs, compliance_penalty, risk_score, issued_at, current
		FROM acc_decisions WHERE line_id = $1 AND current = true ORDER BY issued_at DESC LIMIT 1`
	return s.scanACCDecision(ctx, q, lineID)
}

func (s *PostgresRelationalStore) scanACCDecision(ctx context.Context, q string, args ...any) (domain.ACCDecision, bool, error) {
	var d domain.ACCDecision
	var reasons, evidence []byte
	err := s.pool.QueryRow(ctx, q, args...).Scan(&d.LineID, &d.Decision, &d.PolicyVersion, &reasons, &evidence,
		&d.CompliancePenalty, &d.RiskScore, &d.IssuedAt, &d.Current)
	if err == pgx.ErrNoRows {
		return domain.ACCDecision{}, false, nil
	}
	if err != nil {
		return domain.ACCDecision{}, false, err
	}
	_ = json.Unmarshal(reasons, &d.Reasons)
	_ = json.Unmarshal(evidence, &d.EvidenceRefs)
	return d, true, nil
}

func (s *PostgresRelationalStore) ListACCDecisions(ctx context.Context, lineID string) ([]domain.ACCDecision, error) {
	const q = `SELECT line_id, decision, policy_version, reasons, evidence_refs, compliance_penalty, risk_score, issued_at, current
		FROM acc_decisions WHERE line_id = $1 ORDER BY issued_at ASC`
	rows, err := s.pool.Query(ctx, q, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ACCDecision
	for rows.Next() {
		var d domain.ACCDecision
		var reasons, evidence []byte
		if err := rows.Scan(&d.LineID, &d.Decision, &d.PolicyVersion, &reasons, &evidence,
			&d.CompliancePenalty, &d.RiskScore, &d.IssuedAt, &d.Current); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(reasons, &d.Reasons)
		_ = json.Unmarshal(evidence, &d.EvidenceRefs)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) SavePDRDecision(ctx context.Context, d domain.PDRDecision) error {
	fallback, _ := json.Marshal(d.FallbackRails)
	snapshots, _ := json.Marshal(d.FeatureSnapshots)
	weights, _ := json.Marshal(d.WeightSnapshot)
	filtered, _ := json.Marshal(d.FilteredOut)
	const q = `
		INSERT INTO pdr_decisions (line_id, primary_rail, primary_score, fallback_rails, feature_snapshot,
			weight_snapshot, filtered_out, execution_status, current_attempt_rail, attempt_count,
			final_rail_used, final_utr, final_status, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (line_id) DO UPDATE SET execution_status = EXCLUDED.execution_status,
			current_attempt_rail = EXCLUDED.current_attempt_rail, attempt_count = EXCLUDED.attempt_count,
			final_rail_used = EXCLUDED.final_rail_used, final_utr = EXCLUDED.final_utr,
			final_status = EXCLUDED.final_status`
	_, err := s.pool.Exec(ctx, q, d.LineID, d.PrimaryRail, d.PrimaryScore, fallback, snapshots, weights,
		filtered, d.ExecutionStatus, d.CurrentAttemptRail, d.AttemptCount, d.FinalRailUsed, d.FinalUTR,
		d.FinalStatus, d.DecidedAt)
	return err
}

func (s *PostgresRelationalStore) GetPDRDecision(ctx context.Context, lineID string) (domain.PDRDecision, bool, error) {
	const q = `SELECT line_id, primary_rail, primary_score, fallback_rails, feature_snapshot, weight_snapshot,
		filtered_out, execution_status, current_attempt_rail, attempt_count, final_rail_used, final_utr,
		final_status, decided_at FROM pdr_decisions WHERE line_id = $1`
	var d domain.PDRDecision
	var fallback, snapshots, weights, filtered []byte
	err := s.pool.QueryRow(ctx, q, lineID).Scan(&d.LineID, &d.PrimaryRail, &d.PrimaryScore, &fallback, &snapshots,
		&weights, &filtered, &d.ExecutionStatus, &d.CurrentAttemptRail, &d.AttemptCount, &d.FinalRailUsed,
		&d.FinalUTR, &d.FinalStatus, &d.DecidedAt)
	if err == pgx.ErrNoRows {
		return domain.PDRDecision{}, false, nil
	}
	if err != nil {
		return domain.PDRDecision{}, false, err
	}
	_ = json.Unmarshal(fallback, &d.FallbackRails)
	_ = json.Unmarshal(snapshots, &d.FeatureSnapshots)
	_ = json.Unmarshal(weights, &d.WeightSnapshot)
	_ = json.Unmarshal(filtered, &d.FilteredOut)
	return d, true, nil
}

func (s *PostgresRelationalStore) SaveLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	const q = `
		INSERT INTO ledger_entries (entry_id, account, side, amount, currency, reference, utr, ts, state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (entry_id) DO UPDATE SET state = EXCLUDED.state`
	_, err := s.pool.Exec(ctx, q, e.EntryID, e.Account, e.Side, e.Amount.String(), e.Currency, e.Reference, e.UTR, e.TS, e.State)
	return err
}

func (s *PostgresRelationalStore) ListLedgerEntriesByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error) {
	const q = `SELECT entry_id, account, side, amount, currency, reference, utr, ts, state
		FROM ledger_entries WHERE reference = $1 ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, q, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var amountStr string
		if err := rows.Scan(&e.EntryID, &e.Account, &e.Side, &amountStr, &e.Currency, &e.Reference, &e.UTR, &e.TS, &e.State); err != nil {
			return nil, err
		}
		amt, err := domain.NewAmount(amountStr)
		if err != nil {
			return nil, err
		}
		e.Amount = amt
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) UpdateLedgerEntryState(ctx context.Context, entryID string, state domain.LedgerEntryState) error {
	ct, err := s.pool.Exec(ctx, `UPDATE ledger_entries SET state = $2 WHERE entry_id = $1`, entryID, state)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("ledger entry not found: %s", entryID)
	}
	return nil
}

func (s *PostgresRelationalStore) SaveARLResult(ctx context.Context, r domain.ARLResult) error {
	discrepancies, _ := json.Marshal(r.Discrepancies)
	const q = `
		INSERT INTO arl_results (line_id, state, matched_count, total_count, discrepancies, score)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (line_id) DO UPDATE SET state = EXCLUDED.state, matched_count = EXCLUDED.matched_count,
			total_count = EXCLUDED.total_count, discrepancies = EXCLUDED.discrepancies, score = EXCLUDED.score`
	_, err := s.pool.Exec(ctx, q, r.LineID, r.State, r.MatchedCount, r.TotalCount, discrepancies, r.Score)
	return err
}

func (s *PostgresRelationalStore) GetARLResult(ctx context.Context, lineID string) (domain.ARLResult, bool, error) {
	const q = `SELECT line_id, state, matched_count, total_count, discrepancies, score FROM arl_results WHERE line_id = $1`
	var r domain.ARLResult
	var discrepancies []byte
	err := s.pool.QueryRow(ctx, q, lineID).Scan(&r.LineID, &r.State, &r.MatchedCount, &r.TotalCount, &discrepancies, &r.Score)
	if err == pgx.ErrNoRows {
		return domain.ARLResult{}, false, nil
	}
	if err != nil {
		return domain.ARLResult{}, false, err
	}
	_ = json.Unmarshal(discrepancies, &r.Discrepancies)
	return r, true, nil
}

func (s *PostgresRelationalStore) SaveRCAResult(ctx context.Context, r domain.RCAResult) error {
	rootCause, _ := json.Marshal(r.RootCause)
	details, _ := json.Marshal(r.AnalysisDetails)
	const q = `
		INSERT INTO rca_results (line_id, root_cause, analysis_details)
		VALUES ($1,$2,$3)
		ON CONFLICT (line_id) DO UPDATE SET root_cause = EXCLUDED.root_cause, analysis_details = EXCLUDED.analysis_details`
	_, err := s.pool.Exec(ctx, q, r.LineID, rootCause, details)
	return err
}

func (s *PostgresRelationalStore) GetRCAResult(ctx context.Context, lineID string) (domain.RCAResult, bool, error) {
	const q = `SELECT line_id, root_cause, analysis_details FROM rca_results WHERE line_id = $1`
	var r domain.RCAResult
	var rootCause, details []byte
	err := s.pool.QueryRow(ctx, q, lineID).Scan(&r.LineID, &rootCause, &details)
	if err == pgx.ErrNoRows {
		return domain.RCAResult{}, false, nil
	}
	if err != nil {
		return domain.RCAResult{}, false, err
	}
	_ = json.Unmarshal(rootCause, &r.RootCause)
	_ = json.Unmarshal(details, &r.AnalysisDetails)
	return r, true, nil
}

func (s *PostgresRelationalStore) SaveCRRAKReport(ctx context.Context, r domain.CRRAKReport) error {
	risk, _ := json.Marshal(r.Risk)
	factors, _ := json.Marshal(r.RiskFactors)
	trail, _ := json.Marshal(r.AuditTrail)
	recs, _ := json.Marshal(r.Recommendations)
	const q = `
		INSERT INTO crrak_reports (line_id, compliance_status, compliance_score, sanctions_clear, kyc_verified,
			risk, risk_factors, audit_trail, recommendations, report_ref, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (line_id) DO UPDATE SET compliance_status = EXCLUDED.compliance_status,
			compliance_score = EXCLUDED.compliance_score`
	_, err := s.pool.Exec(ctx, q, r.LineID, r.ComplianceStatus, r.ComplianceScore, r.SanctionsClear, r.KYCVerified,
		risk, factors, trail, recs, r.ReportRef, r.IssuedAt)
	return err
}

func (s *PostgresRelationalStore) GetCRRAKReport(ctx context.Context, lineID string) (domain.CRRAKReport, bool, error) {
	const q = `SELECT line_id, compliance_status, compliance_score, sanctions_clear, kyc_verified, risk,
		risk_factors, audit_trail, recommendations, report_ref, issued_at FROM crrak_reports WHERE line_id = $1`
	var r domain.CRRAKReport
	var risk, factors, trail, recs []byte
	err := s.pool.QueryRow(ctx, q, lineID).Scan(&r.LineID, &r.ComplianceStatus, &r.ComplianceScore, &r.SanctionsClear,
		&r.KYCVerified, &risk, &factors, &trail, &recs, &r.ReportRef, &r.IssuedAt)
	if err == pgx.ErrNoRows {
		return domain.CRRAKReport{}, false, nil
	}
	if err != nil {
		return domain.CRRAKReport{}, false, err
	}
	_ = json.Unmarshal(risk, &r.Risk)
	_ = json.Unmarshal(factors, &r.RiskFactors)
	_ = json.Unmarshal(trail, &r.AuditTrail)
	_ = json.Unmarshal(recs, &r.Recommendations)
	return r, true, nil
}

func (s *PostgresRelationalStore) UpsertRailConfig(ctx context.Context, rc domain.RailConfig) error {
	workingHours, _ := json.Marshal(rc.WorkingHours)
	const q = `
		INSERT INTO rail_config (rail_name, rail_type, min_amount, max_amount, new_user_limit, working_hours,
			avg_eta_ms, cost_bps, success_probability, settlement_type, settlement_certainty,
			daily_limit, daily_limit_remaining, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (rail_name) DO UPDATE SET daily_limit_remaining = EXCLUDED.daily_limit_remaining,
			is_active = EXCLUDED.is_active, success_probability = EXCLUDED.success_probability`
	_, err := s.pool.Exec(ctx, q, rc.RailName, rc.RailType, rc.MinAmount.String(), rc.MaxAmount.String(),
		rc.NewUserLimit.String(), workingHours, rc.AvgETAMs, rc.CostBps, rc.SuccessProbability, rc.SettlementType,
		rc.SettlementCertainty, rc.DailyLimit.String(), rc.DailyLimitRemaining.String(), rc.IsActive)
	return err
}

func (s *PostgresRelationalStore) ListRailConfigs(ctx context.Context) ([]domain.RailConfig, error) {
	return s.queryRailConfigs(ctx, `ORDER BY rail_name`)
}

func (s *PostgresRelationalStore) GetRailConfig(ctx context.Context, railName string) (domain.RailConfig, bool, error) {
	out, err := s.queryRailConfigs(ctx, `WHERE rail_name = $1`, railName)
	if err != nil || len(out) == 0 {
		return domain.RailConfig{}, false, err
	}
	return out[0], true, nil
}

func (s *PostgresRelationalStore) queryRailConfigs(ctx context.Context, where string, args ...any) ([]domain.RailConfig, error) {
	q := `SELECT rail_name, rail_type, min_amount, max_amount, new_user_limit, working_hours, avg_eta_ms,
		cost_bps, success_probability, settlement_type, settlement_certainty, daily_limit,
		daily_limit_remaining, is_active FROM rail_config ` + where
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RailConfig
	for rows.Next() {
		var rc domain.RailConfig
		var minStr, maxStr, newUserStr, dailyStr, remainingStr string
		var workingHours []byte
		if err := rows.Scan(&rc.RailName, &rc.RailType, &minStr, &maxStr, &newUserStr, &workingHours, &rc.AvgETAMs,
			&rc.CostBps, &rc.SuccessProbability, &rc.SettlementType, &rc.SettlementCertainty, &dailyStr,
			&remainingStr, &rc.IsActive); err != nil {
			return nil, err
		}
		var parseErr error
		if rc.MinAmount, parseErr = domain.NewAmount(minStr); parseErr != nil {
			return nil, parseErr
		}
		if rc.MaxAmount, parseErr = domain.NewAmount(maxStr); parseErr != nil {
			return nil, parseErr
		}
		if rc.NewUserLimit, parseErr = domain.NewAmount(newUserStr); parseErr != nil {
			return nil, parseErr
		}
		if rc.DailyLimit, parseErr = domain.NewAmount(dailyStr); parseErr != nil {
			return nil, parseErr
		}
		if rc.DailyLimitRemaining, parseErr = domain.NewAmount(remainingStr); parseErr != nil {
			return nil, parseErr
		}
		_ = json.Unmarshal(workingHours, &rc.WorkingHours)
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) AppendRailPerformance(ctx context.Context, p domain.RailPerformance) error {
	const q = `
		INSERT INTO rail_performance (rail_name, line_id, attempt_no, actual_eta_ms, success, error_code,
			error_message, initiated_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.pool.Exec(ctx, q, p.RailName, p.LineID, p.AttemptNo, p.ActualETAMs, p.Success, p.ErrorCode,
		p.ErrorMessage, p.InitiatedAt, p.CompletedAt)
	return err
}

func (s *PostgresRelationalStore) ListRecentRailPerformance(ctx context.Context, railName string, limit int) ([]domain.RailPerformance, error) {
	const q = `SELECT rail_name, line_id, attempt_no, actual_eta_ms, success, error_code, error_message,
		initiated_at, completed_at FROM rail_performance WHERE rail_name = $1 ORDER BY initiated_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, railName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RailPerformance
	for rows.Next() {
		var p domain.RailPerformance
		if err := rows.Scan(&p.RailName, &p.LineID, &p.AttemptNo, &p.ActualETAMs, &p.Success, &p.ErrorCode,
			&p.ErrorMessage, &p.InitiatedAt, &p.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) AppendAuditEvent(ctx context.Context, event domain.AuditLogEvent) error {
	const q = `
		INSERT INTO audit_log (seq, batch_id, line_id, action, actor, detail_blob, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.pool.Exec(ctx, q, event.Seq, event.BatchID, event.LineID, event.Action, event.Actor, event.DetailBlob, event.TS)
	return err
}

func (s *PostgresRelationalStore) ListAuditEvents(ctx context.Context, batchID string) ([]domain.AuditLogEvent, error) {
	const q = `SELECT seq, batch_id, line_id, action, actor, detail_blob, ts FROM audit_log WHERE batch_id = $1 ORDER BY seq ASC`
	rows, err := s.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AuditLogEvent
	for rows.Next() {
		var e domain.AuditLogEvent
		if err := rows.Scan(&e.Seq, &e.BatchID, &e.LineID, &e.Action, &e.Actor, &e.DetailBlob, &e.TS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresRelationalStore) LastSeq(ctx context.Context, batchID string) (int64, error) {
	const q = `SELECT COALESCE(MAX(seq), 0) FROM audit_log WHERE batch_id = $1`
	var seq int64
	err := s.pool.QueryRow(ctx, q, batchID).Scan(&seq)
	return seq, err
}
