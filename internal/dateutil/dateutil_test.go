package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func instant(t *testing.T, iso string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		t.Fatalf("bad instant %q: %v", iso, err)
	}
	return ts
}

func TestCivilDateUsesMadridNotUTC(t *testing.T) {
	// 23:30 UTC is already the next civil day in Madrid (UTC+1 in winter).
	ts := instant(t, "2025-01-14T23:30:00Z")
	assert.Equal(t, "2025-01-15", CivilDate(ts))
}

func TestCivilDateAcrossBoundaries(t *testing.T) {
	cases := []struct {
		name                string
		at                  string
		yesterday, tomorrow string
	}{
		{"month boundary", "2025-03-01T10:00:00+01:00", "2025-02-28", "2025-03-02"},
		{"year boundary", "2025-01-01T00:30:00+01:00", "2024-12-31", "2025-01-02"},
		{"into DST spring-forward", "2025-03-30T12:00:00+02:00", "2025-03-29", "2025-03-31"},
		{"out of DST fall-back", "2025-10-26T12:00:00+01:00", "2025-10-25", "2025-10-27"},
		{"leap day", "2024-02-29T08:00:00+01:00", "2024-02-28", "2024-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := instant(t, tc.at)
			assert.Equal(t, tc.yesterday, CivilDateBefore(ts))
			assert.Equal(t, tc.tomorrow, CivilDateAfter(ts))
		})
	}
}

func TestHour(t *testing.T) {
	// 13:00 UTC in summer is 15:00 in Madrid.
	assert.Equal(t, "15:00", Hour("2025-07-10T13:00:00Z"))
	assert.Equal(t, "00:05", Hour("2025-01-10T00:05:00+01:00"))
	assert.Equal(t, "—", Hour("not-a-timestamp"))
	assert.Equal(t, "—", Hour(""))
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2025-07-10"))
	assert.True(t, ValidDate("2024-02-29"))

	assert.False(t, ValidDate("2025-13-01"), "month 13 must be rejected")
	assert.False(t, ValidDate("2025-02-30"))
	assert.False(t, ValidDate("2025-7-1"))
	assert.False(t, ValidDate("10/07/2025"))
	assert.False(t, ValidDate(""))
	assert.False(t, ValidDate("2025-07-10T00:00:00Z"))
}
