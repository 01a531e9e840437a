package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// FormatLiteral renders a duration without approximation: "1h 2m 3s",
// omitting zero components; zero renders as "0s".
func FormatLiteral(totalSeconds int64) string {
	if totalSeconds == 0 {
		return "0s"
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

// FormatClock renders HH:MM:SS for running timers.
func FormatClock(totalSeconds int64) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// DecimalHours renders timesheet-friendly decimal hours, optionally
// rounded to the nearest 15, 30 or 60 minute interval.
func DecimalHours(totalSeconds int64, roundingEnabled bool, roundingMinutes int) string {
	hours := float64(totalSeconds) / 3600.0
	if roundingEnabled {
		switch roundingMinutes {
		case 15:
			hours = math.Round(hours*4) / 4
		case 30:
			hours = math.Round(hours*2) / 2
		case 60:
			hours = math.Round(hours)
		}
	}
	switch {
	case hours == 0:
		return "0.00h"
	case hours < 0.01:
		return fmt.Sprintf("%.3fh", hours)
	default:
		return fmt.Sprintf("%.2fh", hours)
	}
}

// Timesheet renders the trailing week as copy-paste plain text, most
// recent day first, with per-timer lines and daily and weekly totals.
func (a *Aggregator) Timesheet(today time.Time) string {
	days := a.Breakdown(today)
	if len(days) > 7 {
		days = days[:7]
	}

	var b strings.Builder
	b.WriteString("WEEKLY TIMESHEET\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")

	var weekTotal int64
	for i, day := range days {
		if day.TotalSeconds == 0 && i != 0 {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", day.Date, today.Location())
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s, %s:\n", date.Weekday(), date.Format("January 02, 2006"))

		if len(day.PerTimerSeconds) == 0 {
			b.WriteString("  no work sessions\n")
		} else {
			ids := make([]string, 0, len(day.PerTimerSeconds))
			for id := range day.PerTimerSeconds {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool {
				return day.TimerNames[ids[i]] < day.TimerNames[ids[j]]
			})
			for _, id := range ids {
				fmt.Fprintf(&b, "  - %s: %s\n", day.TimerNames[id], FormatLiteral(day.PerTimerSeconds[id]))
			}
		}
		fmt.Fprintf(&b, "  daily total: %s\n", FormatLiteral(day.TotalSeconds))
		weekTotal += day.TotalSeconds
	}

	fmt.Fprintf(&b, "\nWEEKLY TOTAL: %s\n", FormatLiteral(weekTotal))
	b.WriteString(strings.Repeat("=", 40) + "\n")
	return b.String()
}
