package railregistry

import (
	"context"
	"testing"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, sec, 0, time.UTC) // a Monday
}

func TestInWorkingHoursRTGSCutoff(t *testing.T) {
	wh := domain.WorkingHours{
		Start:    7 * 60,
		End:      16*60 + 30,
		Weekdays: map[time.Weekday]bool{time.Monday: true, time.Tuesday: true, time.Wednesday: true, time.Thursday: true, time.Friday: true},
	}

	if !InWorkingHours(wh, at(16, 30, 0)) {
		t.Error("16:30:00 must be admitted")
	}
	if InWorkingHours(wh, at(16, 30, 1)) {
		t.Error("16:30:01 must be rejected as OUTSIDE_WORKING_HOURS")
	}
	if !InWorkingHours(wh, at(7, 0, 0)) {
		t.Error("07:00:00 must be admitted (window start)")
	}
	if InWorkingHours(wh, at(6, 59, 59)) {
		t.Error("06:59:59 must be rejected (before window start)")
	}
}

func TestInWorkingHoursRejectsWeekend(t *testing.T) {
	wh := domain.WorkingHours{
		Start:    7 * 60,
		End:      16*60 + 30,
		Weekdays: map[time.Weekday]bool{time.Monday: true, time.Tuesday: true, time.Wednesday: true, time.Thursday: true, time.Friday: true},
	}
	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	if InWorkingHours(wh, saturday) {
		t.Error("Saturday 10:00 must be rejected, RTGS has no weekend window")
	}
}

func TestInWorkingHoursOvernightWindow(t *testing.T) {
	// 22:00-06:00 overnight window: times at or after start OR at or
	// before end (wrapped) are admitted; only the daytime middle is excluded.
	wh := domain.WorkingHours{Start: 22 * 60, End: 6 * 60}

	if !InWorkingHours(wh, at(23, 0, 0)) {
		t.Error("23:00 should be admitted (after start, before midnight)")
	}
	if !InWorkingHours(wh, at(2, 0, 0)) {
		t.Error("02:00 should be admitted (after midnight, before end)")
	}
	if InWorkingHours(wh, at(12, 0, 0)) {
		t.Error("noon should be rejected, it's outside the overnight window")
	}
}

func TestRegistryTryDebitFallsBackToInMemoryWhenNoLimiter(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.configs["UPI"] = domain.RailConfig{
		RailName:            "UPI",
		DailyLimit:          mustAmount(t, "10000.00"),
		DailyLimitRemaining: mustAmount(t, "10000.00"),
	}

	ctx := context.Background()
	ok, err := r.TryDebit(ctx, "UPI", mustAmount(t, "5000.00"))
	if err != nil {
		t.Fatalf("TryDebit: %v", err)
	}
	if !ok {
		t.Error("expected debit within remaining limit to succeed")
	}

	ok, err = r.TryDebit(ctx, "UPI", mustAmount(t, "50000.00"))
	if err != nil {
		t.Fatalf("TryDebit: %v", err)
	}
	if ok {
		t.Error("expected debit exceeding remaining limit to fail")
	}
}

func mustAmount(t *testing.T, s string) domain.Amount {
	t.Helper()
	a, err := domain.NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}
