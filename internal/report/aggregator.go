// Package report derives per-day, per-timer totals from the session log
// over a bounded trailing window. It is pure read-side computation: no
// persisted side effects beyond an invalidatable cache.
package report

import (
	"log/slog"
	"time"

	"github.com/RobDeGeorge/fathertime/internal/logfields"
	"github.com/RobDeGeorge/fathertime/internal/session"
	"github.com/RobDeGeorge/fathertime/internal/store"
)

// DailyBreakdown is the aggregated activity for one calendar day.
type DailyBreakdown struct {
	Date            string           `json:"date"` // YYYY-MM-DD, local time
	PerTimerSeconds map[string]int64 `json:"per_timer_seconds"`
	TimerNames      map[string]string `json:"timer_names"`
	TotalSeconds    int64            `json:"total_seconds"`
}

// Aggregator computes breakdowns from the session log.
type Aggregator struct {
	log        *session.Log
	store      *store.Store
	windowDays int
}

// NewAggregator creates an aggregator over the given log. st may be nil
// to disable the derived cache.
func NewAggregator(log *session.Log, st *store.Store, windowDays int) *Aggregator {
	return &Aggregator{log: log, store: st, windowDays: windowDays}
}

// Breakdown returns one DailyBreakdown per trailing calendar day, most
// recent first, with today at index 0. A session crossing midnight splits
// its duration between the days it spans; a still-open session counts up
// to the reference time.
func (a *Aggregator) Breakdown(today time.Time) []DailyBreakdown {
	days := make([]DailyBreakdown, a.windowDays)
	dayStarts := make([]time.Time, a.windowDays)
	for i := range days {
		dayStart := startOfDay(today).AddDate(0, 0, -i)
		dayStarts[i] = dayStart
		days[i] = DailyBreakdown{
			Date:            dayStart.Format("2006-01-02"),
			PerTimerSeconds: make(map[string]int64),
			TimerNames:      make(map[string]string),
		}
	}

	windowStart := dayStarts[a.windowDays-1]
	for _, s := range a.log.Sessions() {
		end := today
		if !s.IsOpen() {
			end = *s.EndTime
		}
		if end.Before(windowStart) {
			continue
		}
		for i := range days {
			dayStart := dayStarts[i]
			dayEnd := dayStart.AddDate(0, 0, 1)
			seconds := overlapSeconds(s.StartTime, end, dayStart, dayEnd)
			if seconds <= 0 {
				continue
			}
			days[i].PerTimerSeconds[s.TimerID] += seconds
			days[i].TimerNames[s.TimerID] = s.TimerName
			days[i].TotalSeconds += seconds
		}
	}
	return days
}

// overlapSeconds returns the whole seconds of [start,end) falling inside
// [dayStart,dayEnd).
func overlapSeconds(start, end, dayStart, dayEnd time.Time) int64 {
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}

// startOfDay truncates to local midnight.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Totals summarizes the common dashboard numbers.
type Totals struct {
	TodaySeconds     int64 `json:"today_seconds"`
	YesterdaySeconds int64 `json:"yesterday_seconds"`
	WeekSeconds      int64 `json:"week_seconds"` // trailing 7 days including today
}

// Totals derives today/yesterday/week totals from the breakdown window.
func (a *Aggregator) Totals(today time.Time) Totals {
	days := a.Breakdown(today)
	var t Totals
	for i, d := range days {
		if i == 0 {
			t.TodaySeconds = d.TotalSeconds
		}
		if i == 1 {
			t.YesterdaySeconds = d.TotalSeconds
		}
		if i < 7 {
			t.WeekSeconds += d.TotalSeconds
		}
	}
	return t
}

// cacheDocument is the persisted shape of the daily-cache collection.
// It is a derived cache, never a source of truth: any reader must accept
// its absence or staleness.
type cacheDocument struct {
	ComputedOn string           `json:"computed_on"` // YYYY-MM-DD
	Days       []DailyBreakdown `json:"days"`
}

// quiescent reports whether the log has no open session. While a session
// is open the breakdown grows with every passing second, so a cached
// snapshot is stale the moment it is written.
func (a *Aggregator) quiescent() bool {
	for _, s := range a.log.Sessions() {
		if s.IsOpen() {
			return false
		}
	}
	return true
}

// Refresh recomputes the window and persists it to the daily-cache
// collection. The snapshot is only written while the log is quiescent;
// failures are logged, never propagated: the cache is advisory.
func (a *Aggregator) Refresh(today time.Time) []DailyBreakdown {
	days := a.Breakdown(today)
	if a.store != nil && a.quiescent() {
		doc := cacheDocument{ComputedOn: startOfDay(today).Format("2006-01-02"), Days: days}
		if err := a.store.Save(store.CollectionDailyCache, &doc); err != nil {
			slog.Warn("daily cache refresh failed", logfields.Error(err))
		}
	}
	return days
}

// Cached returns the persisted breakdown window if it was computed today
// and the log is quiescent, else nil (callers fall back to Breakdown or
// Refresh). An open session makes the live breakdown a moving target, so
// the cache is bypassed until it closes.
func (a *Aggregator) Cached(today time.Time) []DailyBreakdown {
	if a.store == nil || !a.quiescent() {
		return nil
	}
	var doc cacheDocument
	if err := a.store.Load(store.CollectionDailyCache, &doc); err != nil {
		return nil
	}
	if doc.ComputedOn != startOfDay(today).Format("2006-01-02") {
		return nil
	}
	return doc.Days
}

// Invalidate drops the persisted cache. Safe to call at any time.
func (a *Aggregator) Invalidate() {
	if a.store == nil {
		return
	}
	if err := a.store.Delete(store.CollectionDailyCache); err != nil {
		slog.Warn("daily cache invalidation failed", logfields.Error(err))
	}
}
