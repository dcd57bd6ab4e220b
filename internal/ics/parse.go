// Package ics turns raw iCalendar payloads into normalized records:
// parsing via arran4/golang-ical, recurrence expansion via
// teambition/rrule-go, naive timestamps read as local time and converted
// to UTC, date-only values passed through as all-day dates.
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/illixion/CalendarTransformer/internal/log"
)

// OriginProperty is the extension property carrying the origin identity
// key on serialized destination records.
const OriginProperty = "X-ORIGIN-UID"

// ParsedEvent is one VEVENT as read from the wire, before recurrence
// expansion.
type ParsedEvent struct {
	Collection string

	UID           string
	Summary       string
	Location      string
	Participation string
	Origin        string // OriginProperty value, if present

	Start  time.Time
	End    time.Time // zero when neither DTEND nor DURATION is present
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, when this VEVENT overrides an instance
	IsOverride bool
}

// ParseObject parses a single iCalendar payload into its VEVENTs. A
// malformed individual VEVENT is logged and skipped; a payload that does
// not parse at all is an error for the caller to handle.
func ParseObject(collection string, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar payload")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(collection, comp)
		if perr != nil {
			appLog.Error("vevent parse failed, skipping", perr, "collection", collection)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(collection string, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Collection: collection}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentProperty(OriginProperty)); p != nil {
		out.Origin = p.Value
	}
	out.Participation = participationOf(ve)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseICSTime(dtStart.Value)
		if err != nil {
			return out, err
		}
		out.Start = start
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value); err == nil {
				out.End = end
			}
		}
	} else {
		// The library resolves TZID/UTC forms; floating times come back
		// in the system zone, matching the "naive means local" rule.
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start.UTC()
		if end, err := ve.GetEndAt(); err == nil {
			out.End = end.UTC()
		} else if p := ve.GetProperty(ical.ComponentProperty("DURATION")); p != nil {
			if d, derr := parseDuration(p.Value); derr == nil {
				out.End = out.Start.Add(d)
			}
		}
	}

	if out.UID == "" {
		// Source-native fallback key for documents without a UID.
		out.UID = out.Summary + "_" + out.Start.UTC().Format(time.RFC3339)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// participationOf reads the participation status: a PARTSTAT or RSVP
// top-level property when present, else the PARTSTAT parameter of the
// first ATTENDEE carrying one.
func participationOf(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentProperty("PARTSTAT")); p != nil {
		return p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("RSVP")); p != nil {
		return p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		if p.ICalParameters == nil {
			continue
		}
		if vs, ok := p.ICalParameters["PARTSTAT"]; ok && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if p.ICalParameters != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic iCalendar date or date-time string. Naive
// date-times are read in the system zone; date-only values are pinned to
// UTC midnight so the calendar date survives conversion.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.UTC)
}

// parseDuration parses the iCalendar DURATION subset used for events,
// e.g. "PT1H30M", "P1D", "-PT15M".
func parseDuration(v string) (time.Duration, error) {
	s := strings.TrimSpace(v)
	neg := false
	switch {
	case strings.HasPrefix(s, "-P"):
		neg = true
		s = s[2:]
	case strings.HasPrefix(s, "+P"):
		s = s[2:]
	case strings.HasPrefix(s, "P"):
		s = s[1:]
	default:
		return 0, errors.New("invalid duration: " + v)
	}

	var d time.Duration
	inTime := false
	num := 0
	hasNum := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			hasNum = true
		case r == 'T':
			inTime = true
		case r == 'W' && !inTime:
			d += time.Duration(num) * 7 * 24 * time.Hour
			num, hasNum = 0, false
		case r == 'D' && !inTime:
			d += time.Duration(num) * 24 * time.Hour
			num, hasNum = 0, false
		case r == 'H' && inTime:
			d += time.Duration(num) * time.Hour
			num, hasNum = 0, false
		case r == 'M' && inTime:
			d += time.Duration(num) * time.Minute
			num, hasNum = 0, false
		case r == 'S' && inTime:
			d += time.Duration(num) * time.Second
			num, hasNum = 0, false
		default:
			return 0, errors.New("invalid duration: " + v)
		}
	}
	if hasNum {
		return 0, errors.New("invalid duration: " + v)
	}
	if neg {
		d = -d
	}
	return d, nil
}

// unescapeText reverses iCalendar text escaping (RFC 5545 §3.3.11).
func unescapeText(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
