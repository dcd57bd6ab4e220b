package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illixion/CalendarTransformer/internal/model"
)

func septemberWindow() model.Window {
	return model.Window{
		Start: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestExpand_SingleEvent(t *testing.T) {
	ev := ParsedEvent{
		Collection: "Work",
		UID:        "uid1",
		Summary:    "Team Meeting",
		Start:      time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 9, 14, 11, 0, 0, 0, time.UTC),
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.Len(t, records, 1)
	assert.Equal(t, "uid1", records[0].Identity)
	assert.Equal(t, "Work", records[0].SourceCollection)
	assert.Equal(t, ev.Start, records[0].Start)
}

func TestExpand_SingleEventOutsideWindow(t *testing.T) {
	ev := ParsedEvent{
		UID:   "uid1",
		Start: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC),
	}
	assert.Empty(t, Expand([]ParsedEvent{ev}, septemberWindow()))
}

func TestExpand_DailyRecurrence(t *testing.T) {
	ev := ParsedEvent{
		Collection: "Work",
		UID:        "daily",
		Summary:    "Standup",
		Start:      time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC),
		RawRRule:   "FREQ=DAILY;COUNT=5",
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.Len(t, records, 5)

	// Each instance gets a start-qualified identity and preserves the
	// base duration.
	assert.Equal(t, "daily_20250901T090000Z", records[0].Identity)
	assert.Equal(t, "daily_20250902T090000Z", records[1].Identity)
	for _, rec := range records {
		assert.Equal(t, 15*time.Minute, rec.End.Sub(rec.Start))
	}
}

func TestExpand_RecurrenceWindowClipping(t *testing.T) {
	ev := ParsedEvent{
		UID:      "weekly",
		Start:    time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=WEEKLY",
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.False(t, rec.Start.Before(septemberWindow().Start))
		assert.False(t, rec.Start.After(septemberWindow().End))
	}
}

func TestExpand_ExDate(t *testing.T) {
	excluded := time.Date(2025, 9, 3, 9, 0, 0, 0, time.UTC)
	ev := ParsedEvent{
		UID:      "daily",
		Start:    time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY;COUNT=5",
		ExDates:  []time.Time{excluded},
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.False(t, rec.Start.Equal(excluded))
	}
}

func TestExpand_RecurrenceOverride(t *testing.T) {
	base := ParsedEvent{
		UID:      "daily",
		Summary:  "Standup",
		Start:    time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY;COUNT=3",
	}
	rid := time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC)
	override := ParsedEvent{
		UID:        "daily",
		Summary:    "Standup (moved)",
		Start:      time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 9, 2, 10, 30, 0, 0, time.UTC),
		Recurrence: &rid,
		IsOverride: true,
	}

	records := Expand([]ParsedEvent{base, override}, septemberWindow())
	require.Len(t, records, 3)

	var moved *model.Record
	for i := range records {
		if records[i].Summary == "Standup (moved)" {
			moved = &records[i]
		}
	}
	require.NotNil(t, moved)
	assert.Equal(t, override.Start, moved.Start)
}

func TestExpand_AllDayRecurrence(t *testing.T) {
	ev := ParsedEvent{
		UID:      "weekly-off",
		Summary:  "Day Off",
		Start:    time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
		AllDay:   true,
		RawRRule: "FREQ=WEEKLY;COUNT=2",
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.AllDay)
		assert.Equal(t, 24*time.Hour, rec.End.Sub(rec.Start))
	}
	assert.Equal(t, "weekly-off_20250901", records[0].Identity)
}

func TestExpand_InvalidRRuleFallsBackToSingle(t *testing.T) {
	ev := ParsedEvent{
		UID:      "broken",
		Start:    time.Date(2025, 9, 14, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 9, 14, 11, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=NOPE",
	}

	records := Expand([]ParsedEvent{ev}, septemberWindow())
	require.Len(t, records, 1)
	assert.Equal(t, "broken", records[0].Identity)
}
