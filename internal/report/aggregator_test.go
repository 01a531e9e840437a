package report

import (
	"strings"
	"testing"
	"time"

	"github.com/RobDeGeorge/fathertime/internal/session"
	"github.com/RobDeGeorge/fathertime/internal/store"
)

func newTestLog(t *testing.T) (*session.Log, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	log, err := session.Open(st, 14, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	return log, st
}

func addSession(t *testing.T, log *session.Log, timerID, name string, start time.Time, d time.Duration) {
	t.Helper()
	if _, err := log.OpenSession(timerID, name, start); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if log.CloseSession(timerID, start.Add(d)) == nil {
		t.Fatalf("CloseSession returned nil")
	}
}

func TestBreakdownSameDay(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)

	addSession(t, log, "t1", "Work", today.Add(-8*time.Hour), time.Hour)
	addSession(t, log, "t1", "Work", today.Add(-4*time.Hour), 30*time.Minute)
	addSession(t, log, "t2", "Email", today.Add(-2*time.Hour), 15*time.Minute)

	agg := NewAggregator(log, nil, 14)
	days := agg.Breakdown(today)
	if len(days) != 14 {
		t.Fatalf("window = %d days, want 14", len(days))
	}
	d := days[0]
	if d.Date != "2026-08-26" {
		t.Errorf("index 0 should be today, got %s", d.Date)
	}
	if d.PerTimerSeconds["t1"] != 5400 {
		t.Errorf("t1 seconds = %d, want 5400", d.PerTimerSeconds["t1"])
	}
	if d.PerTimerSeconds["t2"] != 900 {
		t.Errorf("t2 seconds = %d, want 900", d.PerTimerSeconds["t2"])
	}
	if d.TotalSeconds != 6300 {
		t.Errorf("total = %d, want 6300", d.TotalSeconds)
	}
	if d.TimerNames["t1"] != "Work" {
		t.Errorf("timer name = %q, want Work", d.TimerNames["t1"])
	}
}

func TestBreakdownSplitsAcrossMidnight(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	// 23:30 yesterday to 00:30 today.
	start := time.Date(2026, 8, 25, 23, 30, 0, 0, time.UTC)
	addSession(t, log, "t1", "Night Shift", start, time.Hour)

	agg := NewAggregator(log, nil, 14)
	days := agg.Breakdown(today)
	if got := days[0].PerTimerSeconds["t1"]; got != 1800 {
		t.Errorf("today gets %d seconds, want 1800", got)
	}
	if got := days[1].PerTimerSeconds["t1"]; got != 1800 {
		t.Errorf("yesterday gets %d seconds, want 1800", got)
	}
	if days[0].TotalSeconds+days[1].TotalSeconds != 3600 {
		t.Errorf("split loses or duplicates time: %d + %d",
			days[0].TotalSeconds, days[1].TotalSeconds)
	}
}

func TestBreakdownOpenSessionCountsToReferenceTime(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	if _, err := log.OpenSession("t1", "Live", today.Add(-25*time.Minute)); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	agg := NewAggregator(log, nil, 14)
	days := agg.Breakdown(today)
	if got := days[0].PerTimerSeconds["t1"]; got != 1500 {
		t.Errorf("open session counts %d seconds, want 1500", got)
	}
}

func TestBreakdownIgnoresSessionsOutsideWindow(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	addSession(t, log, "t1", "Ancient", today.AddDate(0, 0, -30), time.Hour)
	agg := NewAggregator(log, nil, 14)
	for _, d := range agg.Breakdown(today) {
		if d.TotalSeconds != 0 {
			t.Errorf("day %s has %d seconds from outside the window", d.Date, d.TotalSeconds)
		}
	}
}

func TestTotals(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)

	addSession(t, log, "t1", "Work", today.Add(-2*time.Hour), time.Hour)                 // today
	addSession(t, log, "t1", "Work", today.AddDate(0, 0, -1).Add(-time.Hour), time.Hour) // yesterday
	addSession(t, log, "t1", "Work", today.AddDate(0, 0, -6), time.Hour)                 // inside the week
	addSession(t, log, "t1", "Work", today.AddDate(0, 0, -10), time.Hour)                // outside the week

	agg := NewAggregator(log, nil, 14)
	totals := agg.Totals(today)
	if totals.TodaySeconds != 3600 {
		t.Errorf("today = %d, want 3600", totals.TodaySeconds)
	}
	if totals.YesterdaySeconds != 3600 {
		t.Errorf("yesterday = %d, want 3600", totals.YesterdaySeconds)
	}
	if totals.WeekSeconds != 3*3600 {
		t.Errorf("week = %d, want %d", totals.WeekSeconds, 3*3600)
	}
}

func TestCacheLifecycle(t *testing.T) {
	log, st := newTestLog(t)
	today := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)
	addSession(t, log, "t1", "Work", today.Add(-2*time.Hour), time.Hour)

	agg := NewAggregator(log, st, 14)

	if agg.Cached(today) != nil {
		t.Error("cache should start empty")
	}
	agg.Refresh(today)
	cached := agg.Cached(today)
	if cached == nil {
		t.Fatal("cache missing after refresh")
	}
	if cached[0].TotalSeconds != 3600 {
		t.Errorf("cached total = %d, want 3600", cached[0].TotalSeconds)
	}

	// A cache computed yesterday is stale for today.
	if agg.Cached(today.AddDate(0, 0, 1)) != nil {
		t.Error("stale cache should not be returned")
	}

	agg.Invalidate()
	if agg.Cached(today) != nil {
		t.Error("cache should be gone after invalidation")
	}
}

func TestCacheBypassedWhileSessionOpen(t *testing.T) {
	log, st := newTestLog(t)
	morning := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)

	if _, err := log.OpenSession("t1", "Live", morning.Add(-time.Hour)); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	agg := NewAggregator(log, st, 14)

	// A refresh while the session is open must not pin a stale snapshot.
	agg.Refresh(morning)
	if agg.Cached(morning) != nil {
		t.Fatal("cache served while a session is open")
	}
	if got := agg.Breakdown(evening)[0].TotalSeconds; got != 9*3600 {
		t.Fatalf("live breakdown = %d, want %d", got, 9*3600)
	}

	// Once the session closes the snapshot reflects a quiescent log and
	// may be cached and served again.
	if log.CloseSession("t1", evening) == nil {
		t.Fatal("CloseSession returned nil")
	}
	agg.Refresh(evening)
	cached := agg.Cached(evening)
	if cached == nil {
		t.Fatal("cache missing after refresh on quiescent log")
	}
	if cached[0].TotalSeconds != 9*3600 {
		t.Errorf("cached total = %d, want %d", cached[0].TotalSeconds, 9*3600)
	}

	// Opening a new session bypasses the existing snapshot immediately.
	if _, err := log.OpenSession("t1", "Live", evening.Add(time.Minute)); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if agg.Cached(evening) != nil {
		t.Error("cache served with a session open again")
	}
}

func TestTimesheet(t *testing.T) {
	log, _ := newTestLog(t)
	today := time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC)

	addSession(t, log, "t1", "Client Work", today.Add(-4*time.Hour), 2*time.Hour)
	addSession(t, log, "t2", "Admin", today.Add(-1*time.Hour), 30*time.Minute)
	addSession(t, log, "t1", "Client Work", today.AddDate(0, 0, -2).Add(-time.Hour), time.Hour)

	agg := NewAggregator(log, nil, 14)
	sheet := agg.Timesheet(today)

	if !strings.Contains(sheet, "WEEKLY TIMESHEET") {
		t.Error("missing header")
	}
	if !strings.Contains(sheet, "Client Work: 2h") {
		t.Errorf("missing per-timer line:\n%s", sheet)
	}
	if !strings.Contains(sheet, "Admin: 30m") {
		t.Errorf("missing per-timer line:\n%s", sheet)
	}
	if !strings.Contains(sheet, "daily total: 2h 30m") {
		t.Errorf("missing daily total:\n%s", sheet)
	}
	if !strings.Contains(sheet, "WEEKLY TOTAL: 3h 30m") {
		t.Errorf("missing weekly total:\n%s", sheet)
	}
	// Per-timer lines are sorted by timer name.
	if strings.Index(sheet, "Admin:") > strings.Index(sheet, "Client Work: 2h") {
		t.Errorf("per-timer lines not sorted by name:\n%s", sheet)
	}
}

func TestFormatLiteral(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{61, "1m 1s"},
		{3600, "1h"},
		{3723, "1h 2m 3s"},
		{7200, "2h"},
	}
	for _, c := range cases {
		if got := FormatLiteral(c.seconds); got != c.want {
			t.Errorf("FormatLiteral(%d) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{36000, "10:00:00"},
	}
	for _, c := range cases {
		if got := FormatClock(c.seconds); got != c.want {
			t.Errorf("FormatClock(%d) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestDecimalHours(t *testing.T) {
	cases := []struct {
		name    string
		seconds int64
		round   bool
		minutes int
		want    string
	}{
		{"zero", 0, false, 0, "0.00h"},
		{"plain", 5400, false, 0, "1.50h"},
		{"tiny unrounded", 30, false, 0, "0.008h"},
		{"quarter up", 53 * 60, true, 15, "1.00h"},     // 53m -> 1.00h
		{"quarter down", 50 * 60, true, 15, "0.75h"},   // 50m -> 0.75h
		{"half", 40 * 60, true, 30, "0.50h"},           // 40m -> 0.50h
		{"hour", 100 * 60, true, 60, "2.00h"},          // 1h40m -> 2.00h
		{"rounds to zero", 5 * 60, true, 30, "0.00h"},  // 5m -> 0.00h
	}
	for _, c := range cases {
		if got := DecimalHours(c.seconds, c.round, c.minutes); got != c.want {
			t.Errorf("%s: DecimalHours(%d, %v, %d) = %q, want %q",
				c.name, c.seconds, c.round, c.minutes, got, c.want)
		}
	}
}
