// Package transform rewrites matched records per their filter set's
// transform rule: unconditional field overrides, then conditional
// substring-triggered stripping.
package transform

import (
	"strings"

	"github.com/illixion/CalendarTransformer/internal/config"
	"github.com/illixion/CalendarTransformer/internal/model"
)

// Apply returns a copy of rec with the rule applied. The origin identity
// is captured here, on the record's first pass through a transform, and
// is never overwritten afterwards.
func Apply(rec model.Record, rule config.Transform) model.Record {
	if rec.Origin == "" {
		rec.Origin = rec.Identity
	}

	if rule.SetSummary != nil {
		rec.Summary = *rule.SetSummary
	}
	if rule.SetLocation != nil {
		rec.Location = *rule.SetLocation
	}
	if rule.SetParticipation != nil {
		rec.Participation = *rule.SetParticipation
	}

	if shouldStrip(rec.Summary, rule.StripSummary, rule.StripSummaryIfContains, rule.StripSummaryIfNotContains) {
		rec.Summary = ""
	}
	if shouldStrip(rec.Location, rule.StripLocation, rule.StripLocationIfContains, rule.StripLocationIfNotContains) {
		rec.Location = ""
	}

	return rec
}

// shouldStrip decides whether a field is blanked. The unconditional flag
// seeds the result, any contains hit sets it, and any not-contains entry
// that is genuinely absent clears it. The not-contains pass runs last and
// wins; both field and rule text are normalized before comparison.
func shouldStrip(val string, unconditional bool, ifContains, ifNotContains []string) bool {
	strip := unconditional

	norm := normalize(val)
	for _, s := range ifContains {
		if strings.Contains(norm, normalize(s)) {
			strip = true
			break
		}
	}
	for _, s := range ifNotContains {
		if !strings.Contains(norm, normalize(s)) {
			strip = false
			break
		}
	}
	return strip
}

// normalize collapses newlines to spaces and trims surrounding space, so
// folded multi-line values still match single-line rule text.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
