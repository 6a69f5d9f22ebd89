package timecalc

import (
	"fmt"
	"strings"
	"time"
)

const (
	logDateLayout = "1/2/2006"
	logTimeLayout = "03:04 PM"
	dayLayout     = "2006-01-02"
)

// LoadLocation resolves an IANA zone name. An empty name means the host's local zone.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// FormatLogDate formats t the way an en-US locale prints a short date, e.g. "11/14/2023".
func FormatLogDate(t time.Time) string {
	return t.Format(logDateLayout)
}

// FormatLogTime formats t as a two-digit 12-hour clock, e.g. "10:13 PM".
func FormatLogTime(t time.Time) string {
	return t.Format(logTimeLayout)
}

// FileStamp returns the UTC instant to the second with ':' and 'T' replaced by '-'.
func FileStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02-15-04-05")
}

// FormatDay formats t as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseTimestamp parses the timestamp spellings the backend is known to send.
// Strings carrying a zone offset are taken as-is, date-times without one are
// read in loc, and bare dates are read as UTC midnight.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	// Date.toString() appends the zone name, e.g. " (Coordinated Universal Time)".
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC1123Z,
		time.RFC1123,
		"Mon Jan 02 2006 15:04:05 GMT-0700",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// PeriodRange returns the [from, to] window a report period covers, ending at the end of now's day.
// Accepted periods are 7d, 30d, 90d, 365d and 1y.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	to := EndOfDay(now)
	var from time.Time
	switch period {
	case "7d":
		from = StartOfDay(now.AddDate(0, 0, -6))
	case "30d":
		from = StartOfDay(now.AddDate(0, 0, -29))
	case "90d":
		from = StartOfDay(now.AddDate(0, 0, -89))
	case "365d":
		from = StartOfDay(now.AddDate(0, 0, -364))
	case "1y":
		from = StartOfDay(now.AddDate(-1, 0, 1))
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q (want 7d, 30d, 90d, 365d or 1y)", period)
	}
	return from, to, nil
}

// ParseDayRange parses YYYY-MM-DD bounds in loc into a [start-of-day, end-of-day] window.
func ParseDayRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	from, err := time.ParseInLocation(dayLayout, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.ParseInLocation(dayLayout, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return StartOfDay(from), EndOfDay(to), nil
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
