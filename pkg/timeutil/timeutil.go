// Package timeutil provides calendar-period utilities for reporting.
// All report timestamps are stored and grouped in UTC; the trend reports
// bucket records by calendar month within a trailing window.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatPeriod is the year-month period format (YYYY-MM).
	FormatPeriod = "2006-01"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// PeriodLabel formats a time as its year-month period label ("2026-08").
func PeriodLabel(t time.Time) string {
	return t.UTC().Format(FormatPeriod)
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the end of the month (23:59:59.999999999) in UTC.
func EndOfMonth(t time.Time) time.Time {
	start := StartOfMonth(t)
	return start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// MonthsAgo returns the moment exactly n calendar months before t.
func MonthsAgo(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, -n, 0)
}

// InTrailingMonths reports whether ts falls within the trailing n-month
// window ending at ref: ts >= ref minus n months.
func InTrailingMonths(ts, ref time.Time, n int) bool {
	return !ts.UTC().Before(MonthsAgo(ref, n))
}

// Minutes expresses a duration as fractional minutes.
func Minutes(d time.Duration) float64 {
	return d.Minutes()
}

// FromMinutes re-expresses fractional minutes as a duration.
func FromMinutes(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}

// SameMonth reports whether two times fall in the same UTC calendar month.
func SameMonth(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month()
}
