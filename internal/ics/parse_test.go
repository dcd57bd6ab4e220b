package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObject_TimedEvent(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:uid1
SUMMARY:Team Meeting
LOCATION:Conference Room
DTSTART:20250914T100000Z
DTEND:20250914T110000Z
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Work", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "Work", ev.Collection)
	assert.Equal(t, "uid1", ev.UID)
	assert.Equal(t, "Team Meeting", ev.Summary)
	assert.Equal(t, "Conference Room", ev.Location)
	assert.Equal(t, time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2025, 9, 14, 11, 0, 0, 0, time.UTC), ev.End)
	assert.False(t, ev.AllDay)
}

func TestParseObject_AllDay(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:uid2
SUMMARY:Holiday
DTSTART;VALUE=DATE:20250914
DTEND;VALUE=DATE:20250915
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Personal", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	assert.Equal(t, time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), ev.End)
}

func TestParseObject_DurationFallback(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:uid3
SUMMARY:Standup
DTSTART:20250914T090000Z
DURATION:PT30M
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Work", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2025, 9, 14, 9, 30, 0, 0, time.UTC), events[0].End)
}

func TestParseObject_MissingUIDFallsBackToSummaryStart(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
SUMMARY:No UID Here
DTSTART:20250914T100000Z
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Work", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "No UID Here_2025-09-14T10:00:00Z", events[0].UID)
}

func TestParseObject_Participation(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:uid4
SUMMARY:Lunch Meeting
DTSTART:20250914T120000Z
RSVP:DECLINED
END:VEVENT
BEGIN:VEVENT
UID:uid5
SUMMARY:Review
DTSTART:20250914T140000Z
ATTENDEE;PARTSTAT=ACCEPTED:mailto:me@example.com
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Work", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "DECLINED", events[0].Participation)
	assert.Equal(t, "ACCEPTED", events[1].Participation)
}

func TestParseObject_OriginExtension(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:dest-uid
SUMMARY:Busy
DTSTART:20250914T100000Z
X-ORIGIN-UID:source-uid
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("dest", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "source-uid", events[0].Origin)
}

func TestParseObject_UnescapesText(t *testing.T) {
	payload := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:uid6
SUMMARY:Plan A\, then B
LOCATION:HQ\; Floor 2
DTSTART:20250914T100000Z
END:VEVENT
END:VCALENDAR`

	events, err := ParseObject("Work", []byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Plan A, then B", events[0].Summary)
	assert.Equal(t, "HQ; Floor 2", events[0].Location)
}

func TestParseObject_EmptyPayload(t *testing.T) {
	_, err := ParseObject("Work", nil)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"PT1H":    time.Hour,
		"PT1H30M": 90 * time.Minute,
		"P1D":     24 * time.Hour,
		"P1W":     7 * 24 * time.Hour,
		"PT45S":   45 * time.Second,
		"-PT15M":  -15 * time.Minute,
		"P1DT2H":  26 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, bad := range []string{"", "1H", "PX", "P1"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
