package ics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentZone_Transitions(t *testing.T) {
	events, err := DecodeEvents(calendarDoc(
		fmt.Sprintf(outlookZones, "Customized Time Zone"),
		vevent("UID:1@test", "DTSTART;TZID=Customized Time Zone:20240605T090000"),
	))
	require.NoError(t, err)
	require.Len(t, events, 1)
	zone := events[0].Start.Zone
	require.NotNil(t, zone)
	assert.Equal(t, "Customized Time Zone", zone.TZID)

	cases := []struct {
		name string
		wall time.Time
		want int
	}{
		{"winter", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 3600},
		{"before spring change", time.Date(2024, 3, 31, 1, 59, 0, 0, time.UTC), 3600},
		{"after spring change", time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC), 7200},
		{"summer", time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), 7200},
		{"before autumn change", time.Date(2024, 10, 27, 2, 30, 0, 0, time.UTC), 7200},
		{"after autumn change", time.Date(2024, 10, 27, 3, 0, 0, 0, time.UTC), 3600},
		{"new year", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 3600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, zone.offsetAt(tc.wall))
		})
	}
}

func TestDocumentZone_FixedOffset(t *testing.T) {
	events, err := DecodeEvents(calendarDoc(
		"BEGIN:VTIMEZONE",
		"TZID:Office",
		"BEGIN:STANDARD",
		"DTSTART:19700101T000000",
		"TZOFFSETFROM:+0530",
		"TZOFFSETTO:+0530",
		"END:STANDARD",
		"END:VTIMEZONE",
		vevent("UID:1@test", "DTSTART;TZID=Office:20240605T090000"),
	))
	require.NoError(t, err)

	got, err := events[0].Start.Resolve(time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 6, 5, 3, 30, 0, 0, time.UTC)))
}

func TestDocumentZone_UnreadableBlockIsIncomparable(t *testing.T) {
	doc := calendarDoc(
		"BEGIN:VTIMEZONE",
		"TZID:Broken Zone",
		"BEGIN:STANDARD",
		"DTSTART:19700101T000000",
		"TZOFFSETTO:one hour",
		"END:STANDARD",
		"END:VTIMEZONE",
		vevent("UID:1@test", "DTSTART;TZID=Broken Zone:20240605T090000"),
	)

	got, err := FilterUpcomingEvents(doc, june1, DefaultHorizonDays)
	require.ErrorIs(t, err, ErrIncomparableTimeFrame)
	assert.Nil(t, got)
}

func TestLoadZone_WindowsNames(t *testing.T) {
	loc, err := loadZone("Eastern Standard Time")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	loc, err = loadZone(`"Tokyo Standard Time"`)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())

	_, err = loadZone("Middle Earth Standard Time")
	require.Error(t, err)
}

func TestYearlyRule_Onset(t *testing.T) {
	start := time.Date(1601, 1, 1, 2, 0, 0, 0, time.UTC)

	last, err := parseYearlyRule("FREQ=YEARLY;BYDAY=-1SU;BYMONTH=3", start)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 2, 0, 0, 0, time.UTC), last.onset(2024, start))
	assert.Equal(t, time.Date(2025, 3, 30, 2, 0, 0, 0, time.UTC), last.onset(2025, start))

	second, err := parseYearlyRule("FREQ=YEARLY;BYMONTH=3;BYDAY=2SU", start)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), second.onset(2024, start))

	_, err = parseYearlyRule("FREQ=YEARLY;BYMONTH=3;BYMONTHDAY=8,9,10,11,12,13,14", start)
	require.Error(t, err)
}
