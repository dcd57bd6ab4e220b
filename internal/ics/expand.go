package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/illixion/CalendarTransformer/internal/log"
	"github.com/illixion/CalendarTransformer/internal/model"
)

// Recurring events are capped to keep a malformed RRULE from expanding
// without bound.
const maxInstancesPerEvent = 5000

// Expand turns parsed events into concrete records within the window,
// expanding RRULE recurrences (honoring EXDATE and RECURRENCE-ID
// overrides) and qualifying each instance's identity with its start so
// instances of one event stay distinct across runs.
func Expand(events []ParsedEvent, win model.Window) []model.Record {
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	order := make([]string, 0, len(events))

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	records := make([]model.Record, 0, len(events))
	for _, uid := range order {
		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" {
				records = append(records, expandSingle(ev, overridesByUID[uid], win)...)
			} else {
				records = append(records, expandRecurring(ev, overridesByUID[uid], win)...)
			}
		}
	}
	return records
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, win model.Window) []model.Record {
	if o, ok := overrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !win.Contains(ev.Start, effectiveEnd(ev)) {
		return nil
	}
	return []model.Record{makeRecord(ev, ev.Start, ev.End, false)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, win model.Window) []model.Record {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("rrule parse failed, treating event as single", err,
			"collection", ev.Collection, "uid", ev.UID, "rrule", ev.RawRRule)
		return expandSingle(ev, overrides, win)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// An unbounded past window still needs a concrete lower bound for
	// Between; the event's own start is the earliest possible instance.
	lo := ev.Start
	if !win.Start.IsZero() && win.Start.After(lo) {
		lo = win.Start
	}
	hi := win.End
	if hi.IsZero() {
		hi = lo.AddDate(10, 0, 0)
	}

	starts := set.Between(lo.In(ev.Start.Location()), hi.In(ev.Start.Location()), true)
	if len(starts) > maxInstancesPerEvent {
		appLog.Error("recurrence expansion truncated", errors.New("instance cap reached"),
			"collection", ev.Collection, "uid", ev.UID, "cap", maxInstancesPerEvent)
		starts = starts[:maxInstancesPerEvent]
	}

	dur := time.Duration(0)
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}

	out := make([]model.Record, 0, len(starts))
	for _, start := range starts {
		instEv := ev
		instStart := start
		var instEnd time.Time

		if ev.AllDay {
			instStart = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
			if !ev.End.IsZero() {
				instEnd = instStart.AddDate(0, 0, daysBetween(ev.Start, ev.End))
			}
		} else if !ev.End.IsZero() {
			instEnd = instStart.Add(dur)
		}

		if o, ok := overrideForStart(overrides, start); ok {
			instEv = o
			instStart = o.Start
			instEnd = o.End
		}

		rec := makeRecord(instEv, instStart, instEnd, true)
		out = append(out, rec)
	}
	return out
}

func overrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeRecord(ev ParsedEvent, start, end time.Time, instance bool) model.Record {
	if !ev.AllDay {
		start = start.UTC()
		if !end.IsZero() {
			end = end.UTC()
		}
	}

	identity := ev.UID
	if instance {
		identity = ev.UID + "_" + instanceStamp(start, ev.AllDay)
	}

	return model.Record{
		SourceCollection: ev.Collection,
		Identity:         identity,
		Origin:           ev.Origin,
		Summary:          ev.Summary,
		Location:         ev.Location,
		Participation:    ev.Participation,
		Start:            start,
		End:              end,
		AllDay:           ev.AllDay,
	}
}

func instanceStamp(start time.Time, allDay bool) string {
	if allDay {
		return start.Format("20060102")
	}
	return start.UTC().Format("20060102T150405Z")
}

func effectiveEnd(ev ParsedEvent) time.Time {
	if !ev.End.IsZero() {
		return ev.End
	}
	if ev.AllDay {
		return ev.Start.AddDate(0, 0, 1)
	}
	return ev.Start.Add(time.Hour)
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 1 {
		d = 1
	}
	return d
}
