package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents_TimeValueVariants(t *testing.T) {
	doc := calendarDoc(
		vevent("UID:date@test", "SUMMARY:date", "DTSTART;VALUE=DATE:20240605"),
		vevent("UID:bare@test", "SUMMARY:bare date", "DTSTART:20240606"),
		vevent("UID:utc@test", "SUMMARY:utc", "DTSTART:20240607T081500Z"),
		vevent("UID:zoned@test", "SUMMARY:zoned", "DTSTART;TZID=Europe/Berlin:20240608T090000"),
		vevent("UID:float@test", "SUMMARY:floating", "DTSTART:20240609T101112", "RRULE:FREQ=WEEKLY"),
	)

	events, err := DecodeEvents(doc)
	require.NoError(t, err)
	require.Len(t, events, 5)

	assert.Equal(t, TimeValue{Kind: KindDate, Year: 2024, Month: time.June, Day: 5}, *events[0].Start)
	assert.Equal(t, KindDate, events[1].Start.Kind)

	assert.Equal(t, TimeValue{
		Kind: KindDateTime, Frame: FrameUTC,
		Year: 2024, Month: time.June, Day: 7, Hour: 8, Minute: 15,
	}, *events[2].Start)

	assert.Equal(t, FrameZoned, events[3].Start.Frame)
	assert.Equal(t, "Europe/Berlin", events[3].Start.TZID)

	assert.Equal(t, FrameFloating, events[4].Start.Frame)
	assert.Equal(t, 11, events[4].Start.Minute)
	assert.Equal(t, 12, events[4].Start.Second)
	assert.Equal(t, "FREQ=WEEKLY", events[4].RRule)
	assert.Equal(t, "float@test", events[4].UID)
}

func TestTimeValue_Resolve(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	date := TimeValue{Kind: KindDate, Year: 2024, Month: time.June, Day: 1}
	got, err := date.Resolve(tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo), got)

	floating := TimeValue{Kind: KindDateTime, Frame: FrameFloating, Year: 2024, Month: time.June, Day: 1, Hour: 9}
	got, err = floating.Resolve(tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, tokyo), got)

	zoned := TimeValue{Kind: KindDateTime, Frame: FrameZoned, TZID: `"/Europe/Berlin"`, Year: 2024, Month: time.January, Day: 1, Hour: 12}
	got, err = zoned.Resolve(tokyo)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))

	bad := TimeValue{Kind: KindDateTime, Frame: FrameZoned, TZID: "Custom Zone", Year: 2024, Month: time.January, Day: 1}
	_, err = bad.Resolve(tokyo)
	require.ErrorIs(t, err, ErrIncomparableTimeFrame)
}
