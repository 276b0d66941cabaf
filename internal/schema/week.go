package schema

import "time"

// Millis converts a time to epoch milliseconds, the timestamp unit
// used for week keys and conflict resolution.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds back to a local time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// WeekStart normalizes t to the Monday 00:00:00 of its week in t's
// location. Weeks are Monday-first; a Sunday belongs to the week that
// started six days earlier.
func WeekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7 // Sunday
	}
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekDays returns the seven midnights of the week beginning at
// monday, in order Monday through Sunday.
func WeekDays(monday time.Time) [DaysPerWeek]time.Time {
	var days [DaysPerWeek]time.Time
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return days
}
