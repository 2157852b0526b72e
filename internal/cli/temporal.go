package cli

import (
	"fmt"
	"strings"
	"time"
)

// TimeframePreset represents a named time range.
type TimeframePreset string

const (
	TimeframeLastHour  TimeframePreset = "last_hour"
	TimeframeToday     TimeframePreset = "today"
	TimeframeYesterday TimeframePreset = "yesterday"
	TimeframeLast3Days TimeframePreset = "last_3_days"
	TimeframeLast7Days TimeframePreset = "last_7_days"
	TimeframeThisWeek  TimeframePreset = "this_week"
	TimeframeLastWeek  TimeframePreset = "last_week"
	TimeframeThisMonth TimeframePreset = "this_month"
)

var timeframeOrder = []TimeframePreset{
	TimeframeLastHour, TimeframeToday, TimeframeYesterday, TimeframeLast3Days,
	TimeframeLast7Days, TimeframeThisWeek, TimeframeLastWeek, TimeframeThisMonth,
}

// timeframes maps each preset to its [after, before) range relative to now.
var timeframes = map[TimeframePreset]func(now time.Time) (time.Time, time.Time){
	TimeframeLastHour: func(now time.Time) (time.Time, time.Time) {
		return now.Add(-time.Hour), now
	},
	TimeframeToday: func(now time.Time) (time.Time, time.Time) {
		return midnight(now), now
	},
	TimeframeYesterday: func(now time.Time) (time.Time, time.Time) {
		today := midnight(now)
		return today.AddDate(0, 0, -1), today
	},
	TimeframeLast3Days: func(now time.Time) (time.Time, time.Time) {
		return now.AddDate(0, 0, -3), now
	},
	TimeframeLast7Days: func(now time.Time) (time.Time, time.Time) {
		return now.AddDate(0, 0, -7), now
	},
	TimeframeThisWeek: func(now time.Time) (time.Time, time.Time) {
		return monday(now), now
	},
	TimeframeLastWeek: func(now time.Time) (time.Time, time.Time) {
		this := monday(now)
		return this.AddDate(0, 0, -7), this
	},
	TimeframeThisMonth: func(now time.Time) (time.Time, time.Time) {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	},
}

// ParseTimeframe converts a timeframe preset into after/before timestamps.
func ParseTimeframe(timeframe string) (after string, before string, err error) {
	return parseTimeframeAt(timeframe, time.Now())
}

func parseTimeframeAt(timeframe string, now time.Time) (string, string, error) {
	if timeframe == "" {
		return "", "", nil
	}
	fn, ok := timeframes[TimeframePreset(timeframe)]
	if !ok {
		return "", "", fmt.Errorf("invalid timeframe: %s (valid: %s)", timeframe, timeframeNames())
	}
	a, b := fn(now)
	return a.Format(time.RFC3339), b.Format(time.RFC3339), nil
}

func timeframeNames() string {
	names := make([]string, len(timeframeOrder))
	for i, p := range timeframeOrder {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// monday returns the start of t's ISO week.
func monday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return midnight(t).AddDate(0, 0, -offset)
}
