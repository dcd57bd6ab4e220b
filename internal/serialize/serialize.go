// Package serialize renders an internal record into the destination wire
// format: a single-event VCALENDAR with a freshly generated UID, the
// origin identity as an extension property, and escaped text values.
package serialize

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/illixion/CalendarTransformer/internal/ics"
	"github.com/illixion/CalendarTransformer/internal/model"
)

const productID = "-//illixion//CalendarTransformer//EN"

// Render serializes rec as a VCALENDAR document. The event gets a fresh
// UUID; the source UID is never reused as the destination UID, and
// identity across runs travels only in the X-ORIGIN-UID extension. now
// becomes the DTSTAMP generation timestamp. An unset end defaults to
// start+1h for timed records and the next day for all-day records.
func Render(rec model.Record, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)

	ev := cal.AddEvent(uuid.NewString())
	ev.SetDtStampTime(now.UTC())
	ev.SetProperty(ical.ComponentPropertySummary, EscapeText(rec.Summary))

	end := rec.EffectiveEnd()
	if rec.AllDay {
		ev.SetAllDayStartAt(rec.Start)
		ev.SetAllDayEndAt(end)
	} else {
		ev.SetStartAt(rec.Start.UTC())
		ev.SetEndAt(end.UTC())
	}

	if rec.Location != "" {
		ev.SetProperty(ical.ComponentPropertyLocation, EscapeText(rec.Location))
	}
	ev.SetProperty(ical.ComponentProperty(ics.OriginProperty), rec.Key())
	if rec.Participation != "" {
		ev.SetProperty(ical.ComponentProperty("PARTSTAT"), rec.Participation)
	}

	return cal.Serialize()
}

// EscapeText applies iCalendar text escaping (RFC 5545 §3.3.11):
// backslash, semicolon, comma and newline are backslash-escaped.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// Bare CR and CRLF both collapse to the escaped newline.
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
