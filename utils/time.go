package utils

import "time"

// ParseTime returns time.Time from text represented time
func ParseTime(t string) (time.Time, error) {
	return time.Parse(time.RFC3339, t)
}

// MakeTimeToString returns text represented time from time.Time
func MakeTimeToString(t time.Time) string {
	return t.Format(time.RFC3339)
}

// FormatDisplayTime returns a compact display form of a text represented time.
// Unparseable input is returned unchanged so callers can pass it through.
func FormatDisplayTime(t string) string {
	if t == "" {
		return ""
	}
	parsed, err := ParseTime(t)
	if err != nil {
		return t
	}
	return parsed.Format("2006-01-02 15:04:05")
}
