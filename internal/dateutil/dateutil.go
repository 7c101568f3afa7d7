// Package dateutil resolves civil dates in the Spanish electricity
// market's timezone. PVPC days are defined in Europe/Madrid regardless of
// where the service or its callers run, so every "today" in this codebase
// must go through here instead of time.Now().Format.
package dateutil

import (
	"time"
	_ "time/tzdata" // keep Europe/Madrid available on scratch containers
)

// ISODate is the wire format for calendar dates.
const ISODate = "2006-01-02"

var madrid *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic("dateutil: Europe/Madrid not available: " + err.Error())
	}
	madrid = loc
}

// Location returns the Europe/Madrid location.
func Location() *time.Location {
	return madrid
}

// CivilDate renders the instant t as YYYY-MM-DD in Europe/Madrid.
func CivilDate(t time.Time) string {
	return t.In(madrid).Format(ISODate)
}

// CivilDateBefore returns the civil date 24h before t. Shifting the
// absolute instant and re-deriving the civil date keeps month, year and
// DST transitions correct; on the 23h/25h DST days the result is still the
// previous civil day because the offset change is only one hour.
func CivilDateBefore(t time.Time) string {
	return CivilDate(t.Add(-24 * time.Hour))
}

// CivilDateAfter returns the civil date 24h after t.
func CivilDateAfter(t time.Time) string {
	return CivilDate(t.Add(24 * time.Hour))
}

// Today returns today's date in Europe/Madrid.
func Today() string { return CivilDate(time.Now()) }

// Yesterday returns yesterday's date in Europe/Madrid.
func Yesterday() string { return CivilDateBefore(time.Now()) }

// Tomorrow returns tomorrow's date in Europe/Madrid.
func Tomorrow() string { return CivilDateAfter(time.Now()) }

// Hour renders an ISO 8601 instant as 24-hour "HH:MM" in Europe/Madrid.
// Invalid input renders as "—", matching how the frontend displays
// unavailable values.
func Hour(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "—"
	}
	return t.In(madrid).Format("15:04")
}

// ValidDate reports whether s is a syntactically and semantically valid
// YYYY-MM-DD date ("2025-13-01" is rejected, not just malformed shapes).
func ValidDate(s string) bool {
	_, err := time.Parse(ISODate, s)
	return err == nil && len(s) == len(ISODate)
}
