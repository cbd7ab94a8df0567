package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdash/internal/ics"
)

// movableClock lets a test advance time between calls.
type movableClock struct{ now time.Time }

func (c *movableClock) Now() time.Time { return c.now }

func doc(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//opsdash//test//EN"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT", ev, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestService_UpcomingWithoutDocument(t *testing.T) {
	svc := NewService(&movableClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, time.UTC, ics.DefaultHorizonDays)

	snap, err := svc.Upcoming()
	require.NoError(t, err)
	assert.False(t, snap.Loaded)
	assert.NotNil(t, snap.Events)
	assert.Empty(t, snap.Events)
}

func TestService_LoadThenWindowMovesWithClock(t *testing.T) {
	clk := &movableClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewService(clk, time.UTC, ics.DefaultHorizonDays)

	body := doc(
		"UID:1@test\r\nSUMMARY:soon\r\nDTSTART:20240603T090000",
		"UID:2@test\r\nSUMMARY:later\r\nDTSTART:20240620T090000",
	)
	events, err := svc.Load(body, "upload:work.ics")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "soon", events[0].Title)

	origin, loadedAt := svc.Source()
	assert.Equal(t, "upload:work.ics", origin)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), loadedAt)

	clk.now = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	snap, err := svc.Upcoming()
	require.NoError(t, err)
	assert.True(t, snap.Loaded)
	assert.Equal(t, "upload:work.ics", snap.Origin)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "later", snap.Events[0].Title)
	assert.Equal(t, loadedAt, snap.LoadedAt)
}

func TestService_RejectedDocumentKeepsPrevious(t *testing.T) {
	clk := &movableClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewService(clk, time.UTC, ics.DefaultHorizonDays)

	_, err := svc.Load(doc("UID:1@test\r\nSUMMARY:kept\r\nDTSTART:20240603T090000"), "first")
	require.NoError(t, err)

	_, err = svc.Load([]byte("garbage"), "second")
	require.ErrorIs(t, err, ics.ErrMalformedDocument)

	snap, err := svc.Upcoming()
	require.NoError(t, err)
	assert.Equal(t, "first", snap.Origin)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "kept", snap.Events[0].Title)
}

func TestService_ReferenceFrameFollowsLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2024-06-01 00:00 in Tokyo.
	clk := &movableClock{now: time.Date(2024, 5, 31, 15, 0, 0, 0, time.UTC)}
	svc := NewService(clk, tokyo, 0)

	events, err := svc.Load(doc("UID:1@test\r\nSUMMARY:today\r\nDTSTART;VALUE=DATE:20240601"), "upload")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo), events[0].Start)
}
