package pricing

import "time"

const dateLayout = "2006-01-02"

// civilDay maps a timestamp to its calendar day in its own location, as yyyymmdd.
// Stored dates and "now" are compared on this key so that the time zone of a
// date column never shifts a validity boundary.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Date truncates t to midnight UTC of its calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a yyyy-mm-dd date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// dateWithin reports whether the day of now lies within [from, to]; nil bounds are open
func dateWithin(now time.Time, from, to *time.Time) bool {
	today := civilDay(now)
	if from != nil && today < civilDay(*from) {
		return false
	}
	if to != nil && today > civilDay(*to) {
		return false
	}
	return true
}
