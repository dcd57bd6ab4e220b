// Package model holds the value types that flow through the merge
// pipeline. Everything here is constructed per run and discarded at run
// end; the destination collection is the only durable store.
package model

import "time"

// Record is the normalized representation of one calendar event instance,
// after recurrence expansion and timezone normalization. Timed values are
// in UTC; all-day values carry only a calendar date (AllDay true).
type Record struct {
	// SourceCollection is the name of the collection the record came from.
	SourceCollection string

	// Identity is the source-native key: the iCalendar UID, qualified by
	// instance start for expanded recurrences, or a summary+start fallback
	// when the source document carries no UID. Never empty after
	// normalization.
	Identity string

	// Origin is the identity captured at transform time. It is written
	// once, preserved through serialization as the X-ORIGIN-UID extension,
	// and never overwritten. Records read back from the destination carry
	// it when the extension is present.
	Origin string

	Summary       string
	Location      string
	Participation string

	Start  time.Time
	End    time.Time // zero means "unset"; the serializer applies defaults
	AllDay bool

	// Ref is an opaque destination reference (the object's href) used to
	// address deletes. Only set on records read from the destination.
	Ref string
}

// Key returns the stable identity key used for dedup and orphan
// detection: the origin identity when present, the source-native
// identity otherwise.
func (r Record) Key() string {
	if r.Origin != "" {
		return r.Origin
	}
	return r.Identity
}

// EffectiveEnd returns End, or the serializer's default when End is
// unset: start of the next day for all-day records, start+1h otherwise.
func (r Record) EffectiveEnd() time.Time {
	if !r.End.IsZero() {
		return r.End
	}
	if r.AllDay {
		return r.Start.AddDate(0, 0, 1)
	}
	return r.Start.Add(time.Hour)
}

// Window is a scan interval. A zero Start means unbounded past, a zero
// End unbounded future.
type Window struct {
	Start time.Time
	End   time.Time
}

// Bounded reports whether the window constrains at least one side.
func (w Window) Bounded() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

// Contains reports whether [start, end] intersects the window.
func (w Window) Contains(start, end time.Time) bool {
	if !w.Start.IsZero() && end.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && start.After(w.End) {
		return false
	}
	return true
}

// RetentionPolicy is the canonical retention value. Legacy configuration
// aliases are folded into it at config load and do not exist past that
// point.
type RetentionPolicy struct {
	// KeepPastDays drops destination records whose effective end is more
	// than this many days in the past. Zero drops anything already ended;
	// negative disables the trigger.
	KeepPastDays int

	// ScanFutureDays bounds how far ahead sources are scanned.
	ScanFutureDays int
}

// DefaultScanFutureDays is used when the configuration leaves the future
// horizon unset.
const DefaultScanFutureDays = 365

// Window derives the fetch window for a run starting at now: KeepPastDays
// back (unbounded when retention is disabled) through ScanFutureDays
// ahead.
func (p RetentionPolicy) Window(now time.Time) Window {
	var w Window
	if p.KeepPastDays >= 0 {
		w.Start = now.AddDate(0, 0, -p.KeepPastDays)
	}
	days := p.ScanFutureDays
	if days <= 0 {
		days = DefaultScanFutureDays
	}
	w.End = now.AddDate(0, 0, days)
	return w
}

// Expired reports whether a record's effective end predates the retention
// cutoff at time now. The keep boundary is inclusive: a record ending
// exactly KeepPastDays ago is retained.
func (p RetentionPolicy) Expired(r Record, now time.Time) bool {
	if p.KeepPastDays < 0 {
		return false
	}
	cutoff := now.AddDate(0, 0, -p.KeepPastDays)
	return r.EffectiveEnd().Before(cutoff)
}
