// Package policy decides which records never propagate to the
// destination and which existing destination records must be removed.
package policy

import (
	"strings"
	"time"

	"github.com/illixion/CalendarTransformer/internal/model"
)

// CancelMarker is the summary prefix that marks an event for removal.
const CancelMarker = "❌"

// Marked reports whether the record carries a removal marker: a DECLINED
// participation status (any case) or the cancellation glyph at the start
// of the summary. Marked source records are suppressed from the
// transformed set; marked destination records are deleted.
func Marked(rec model.Record) bool {
	if strings.EqualFold(rec.Participation, "DECLINED") {
		return true
	}
	return strings.HasPrefix(rec.Summary, CancelMarker)
}

// Deletion names the trigger that condemned a destination record.
type Deletion struct {
	Record model.Record
	Reason string
}

const (
	ReasonExpired = "retention_expired"
	ReasonMarked  = "marked"
	ReasonOrphan  = "orphan"
)

// ComputeDeletions evaluates the three independent deletion triggers over
// the current destination records. liveKeys is the identity-key set of
// this run's transformed source records. Retention expiry compares the
// record's effective end against the keep cutoff; destination records
// without an origin identity are never treated as orphans.
func ComputeDeletions(dest []model.Record, liveKeys map[string]bool, retention model.RetentionPolicy, now time.Time) []Deletion {
	out := make([]Deletion, 0)
	for _, rec := range dest {
		switch {
		case retention.Expired(rec, now):
			out = append(out, Deletion{Record: rec, Reason: ReasonExpired})
		case Marked(rec):
			out = append(out, Deletion{Record: rec, Reason: ReasonMarked})
		case rec.Origin != "" && !liveKeys[rec.Origin]:
			out = append(out, Deletion{Record: rec, Reason: ReasonOrphan})
		}
	}
	return out
}
