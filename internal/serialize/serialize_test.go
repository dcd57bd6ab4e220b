package serialize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illixion/CalendarTransformer/internal/model"
)

var now = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

func TestRender_TimedEvent(t *testing.T) {
	rec := model.Record{
		Identity: "uid1",
		Origin:   "uid1",
		Summary:  "Busy",
		Start:    time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 9, 14, 11, 0, 0, 0, time.UTC),
	}

	out := Render(rec, now)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "SUMMARY:Busy")
	assert.Contains(t, out, "DTSTART:20250914T100000Z")
	assert.Contains(t, out, "DTEND:20250914T110000Z")
	assert.Contains(t, out, "X-ORIGIN-UID:uid1")
	assert.Contains(t, out, "DTSTAMP:20250915T120000Z")
}

func TestRender_FreshUIDNeverReusesSource(t *testing.T) {
	rec := model.Record{Identity: "source-uid", Origin: "source-uid", Summary: "x", Start: now}

	out := Render(rec, now)
	for _, line := range strings.Split(out, "\r\n") {
		if !strings.HasPrefix(line, "UID:") {
			continue
		}
		uid := strings.TrimPrefix(line, "UID:")
		assert.NotEqual(t, "source-uid", uid)
		assert.NotEmpty(t, uid)
		return
	}
	t.Fatal("no UID line in serialized output")
}

func TestRender_DefaultEnd(t *testing.T) {
	rec := model.Record{
		Identity: "u",
		Summary:  "x",
		Start:    time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC),
	}

	out := Render(rec, now)
	assert.Contains(t, out, "DTEND:20250914T110000Z")
}

func TestRender_AllDay(t *testing.T) {
	rec := model.Record{
		Identity: "u",
		Summary:  "Holiday",
		Start:    time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC),
		AllDay:   true,
	}

	out := Render(rec, now)
	assert.Contains(t, out, "VALUE=DATE")
	assert.Contains(t, out, "20250914")
	// Default all-day end is the next day.
	assert.Contains(t, out, "20250915")
}

func TestRender_OptionalFields(t *testing.T) {
	rec := model.Record{Identity: "u", Summary: "x", Start: now}

	out := Render(rec, now)
	assert.NotContains(t, out, "LOCATION")
	assert.NotContains(t, out, "PARTSTAT")

	rec.Location = "Room 1"
	rec.Participation = "ACCEPTED"
	out = Render(rec, now)
	assert.Contains(t, out, "LOCATION:Room 1")
	assert.Contains(t, out, "PARTSTAT:ACCEPTED")
}

func TestRender_EscapesLocation(t *testing.T) {
	rec := model.Record{
		Identity: "u",
		Summary:  "x",
		Location: `HQ; Floor 2, West`,
		Start:    now,
	}

	out := Render(rec, now)
	assert.Contains(t, out, `HQ\; Floor 2\, West`)
}

func TestEscapeText(t *testing.T) {
	cases := map[string]string{
		`plain`:     `plain`,
		`a;b`:       `a\;b`,
		`a,b`:       `a\,b`,
		`a\b`:       `a\\b`,
		"a\nb":      `a\nb`,
		"a\r\nb":    `a\nb`,
		`a\;b`:      `a\\\;b`,
		``:          ``,
		"semi;com,": `semi\;com\,`,
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeText(in), "input %q", in)
	}
}

func TestRender_UsesOriginKeyForExtension(t *testing.T) {
	// A record that was transformed carries its origin; the extension must
	// hold the identity key, not the destination UID.
	rec := model.Record{Identity: "uid-live", Origin: "uid-original", Summary: "x", Start: now}
	out := Render(rec, now)
	require.Contains(t, out, "X-ORIGIN-UID:uid-original")
}
