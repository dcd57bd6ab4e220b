// Package filter evaluates filter-set selectors and inclusion predicates
// against records. All clauses are AND-combined; comparisons are
// case-sensitive exact substring containment with no normalization.
package filter

import (
	"strings"

	"github.com/illixion/CalendarTransformer/internal/config"
	"github.com/illixion/CalendarTransformer/internal/model"
)

// Match reports whether rec satisfies every clause of the filter set.
func Match(rec model.Record, fs config.FilterSet) bool {
	f := fs.Filters

	if f.CalendarName != "" && rec.SourceCollection != f.CalendarName {
		return false
	}
	if f.NotCalendarName != "" && rec.SourceCollection == f.NotCalendarName {
		return false
	}

	if !containsAll(rec.Summary, f.SummaryContains) {
		return false
	}
	if !containsNone(rec.Summary, f.SummaryNotContains) {
		return false
	}
	if !containsAll(rec.Location, f.LocationContains) {
		return false
	}
	if !containsNone(rec.Location, f.LocationNotContains) {
		return false
	}
	return true
}

// containsAll is vacuously true for an empty list.
func containsAll(val string, subs []string) bool {
	for _, s := range subs {
		if !strings.Contains(val, s) {
			return false
		}
	}
	return true
}

func containsNone(val string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(val, s) {
			return false
		}
	}
	return true
}
