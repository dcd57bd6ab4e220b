// Package sync orchestrates one merge run: fetch sources for the
// retention window, filter and transform, execute deletions, then insert
// records whose identity key is not yet present in the destination. Runs
// are sequential and stateless; every run reads both sides fresh, so a
// run killed halfway is healed by the next one.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/illixion/CalendarTransformer/internal/config"
	"github.com/illixion/CalendarTransformer/internal/filter"
	appLog "github.com/illixion/CalendarTransformer/internal/log"
	"github.com/illixion/CalendarTransformer/internal/metrics"
	"github.com/illixion/CalendarTransformer/internal/model"
	"github.com/illixion/CalendarTransformer/internal/policy"
	"github.com/illixion/CalendarTransformer/internal/serialize"
	"github.com/illixion/CalendarTransformer/internal/transform"
)

// Collection is one named calendar collection, readable and writable.
type Collection interface {
	Name() string
	Events(ctx context.Context, win model.Window) ([]model.Record, error)
	Append(ctx context.Context, body string) error
	Remove(ctx context.Context, rec model.Record) error
}

// Directory resolves collections by name.
type Directory interface {
	Lookup(ctx context.Context, name string) (Collection, error)
}

// Stats summarizes one run.
type Stats struct {
	Fetched     int
	Transformed int
	Deleted     int
	Inserted    int
	Skipped     int // already present in the destination
	Errors      int // individual mutation failures, logged and skipped
}

// Engine executes merge runs for one configuration.
type Engine struct {
	dir       Directory
	cfg       *config.Config
	retention model.RetentionPolicy
	dryRun    bool

	// now is the run clock; replaced in tests.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun logs mutations instead of executing them.
func WithDryRun(v bool) Option {
	return func(e *Engine) { e.dryRun = v }
}

// WithClock overrides the run clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine over the given directory and configuration.
func New(dir Directory, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		dir:       dir,
		cfg:       cfg,
		retention: cfg.Policy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one full merge pass. The only fatal error is an
// unresolvable destination (or a destination that cannot be read);
// per-source and per-record failures are logged and the run continues.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	started := e.now()
	stats, err := e.run(ctx, started)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	return stats, err
}

func (e *Engine) run(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats

	// Resolve the destination first: nothing is worth fetching if the
	// run cannot write anywhere.
	dest, err := e.dir.Lookup(ctx, e.cfg.DestCalendar)
	if err != nil {
		return stats, fmt.Errorf("destination collection %q: %w", e.cfg.DestCalendar, err)
	}

	win := e.retention.Window(now)
	appLog.Info("run window computed",
		"start", win.Start.Format(time.RFC3339),
		"end", win.End.Format(time.RFC3339),
		"keep_past_days", e.retention.KeepPastDays)

	sources := e.fetchSources(ctx, win)
	stats.Fetched = len(sources)
	metrics.RecordsFetched.Add(float64(len(sources)))

	transformed := e.filterTransform(sources)
	stats.Transformed = len(transformed)

	liveKeys := make(map[string]bool, len(transformed))
	for _, rec := range transformed {
		liveKeys[rec.Key()] = true
	}

	destRecords, err := dest.Events(ctx, model.Window{})
	if err != nil {
		return stats, fmt.Errorf("destination collection %q: %w", e.cfg.DestCalendar, err)
	}

	deletions := policy.ComputeDeletions(destRecords, liveKeys, e.retention, now)
	for _, del := range deletions {
		appLog.Info("deleting destination record",
			"reason", del.Reason, "key", del.Record.Key(), "summary", del.Record.Summary,
			"dry_run", e.dryRun)
		if e.dryRun {
			stats.Deleted++
			continue
		}
		if err := dest.Remove(ctx, del.Record); err != nil {
			appLog.Error("destination delete failed, continuing", err,
				"key", del.Record.Key(), "reason", del.Reason)
			stats.Errors++
			metrics.MutationErrors.Inc()
			continue
		}
		stats.Deleted++
		metrics.RecordsDeleted.WithLabelValues(del.Reason).Inc()
	}

	// Rebuild the index from a fresh read so re-qualifying records are
	// not mistaken for still-present duplicates.
	index, err := e.destIndex(ctx, dest, destRecords)
	if err != nil {
		return stats, fmt.Errorf("destination collection %q: %w", e.cfg.DestCalendar, err)
	}

	for _, rec := range transformed {
		key := rec.Key()
		if _, present := index[key]; present {
			stats.Skipped++
			continue
		}
		body := serialize.Render(rec, now)
		appLog.Debug("inserting record", "key", key, "summary", rec.Summary, "dry_run", e.dryRun)
		if !e.dryRun {
			if err := dest.Append(ctx, body); err != nil {
				appLog.Error("destination insert failed, continuing", err, "key", key)
				stats.Errors++
				metrics.MutationErrors.Inc()
				continue
			}
			metrics.RecordsInserted.Inc()
		}
		index[key] = rec
		stats.Inserted++
	}

	appLog.Info("run completed",
		"fetched", stats.Fetched, "transformed", stats.Transformed,
		"deleted", stats.Deleted, "inserted", stats.Inserted,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

// fetchSources reads every source collection named by the filter sets.
// An unresolvable or unreadable source logs a warning and is skipped.
func (e *Engine) fetchSources(ctx context.Context, win model.Window) []model.Record {
	var all []model.Record
	for _, name := range e.cfg.SourceCalendars() {
		col, err := e.dir.Lookup(ctx, name)
		if err != nil {
			appLog.Error("source collection not found, skipping", err, "collection", name)
			continue
		}
		records, err := col.Events(ctx, win)
		if err != nil {
			appLog.Error("source fetch failed, skipping", err, "collection", name)
			continue
		}
		all = append(all, records...)
	}
	return all
}

// filterTransform applies each filter set in order. A source record
// carrying a removal marker never enters the transformed set; a record
// matching several filter sets yields one candidate per set (dedup at
// insert keeps only the first).
func (e *Engine) filterTransform(records []model.Record) []model.Record {
	var out []model.Record
	for _, fs := range e.cfg.FilterSets {
		for _, rec := range records {
			if !filter.Match(rec, fs) {
				continue
			}
			if policy.Marked(rec) {
				continue
			}
			out = append(out, transform.Apply(rec, fs.Transform))
		}
	}
	return out
}

// destIndex maps identity keys to current destination records. After
// real deletions the destination is re-read; a dry run indexes the
// unmodified snapshot.
func (e *Engine) destIndex(ctx context.Context, dest Collection, snapshot []model.Record) (map[string]model.Record, error) {
	records := snapshot
	if !e.dryRun {
		var err error
		records, err = dest.Events(ctx, model.Window{})
		if err != nil {
			return nil, err
		}
	}
	index := make(map[string]model.Record, len(records))
	for _, rec := range records {
		index[rec.Key()] = rec
	}
	return index, nil
}

// Clear removes every record from the destination collection, continuing
// past individual failures. Used by the -clear maintenance mode.
func (e *Engine) Clear(ctx context.Context) (int, error) {
	dest, err := e.dir.Lookup(ctx, e.cfg.DestCalendar)
	if err != nil {
		return 0, fmt.Errorf("destination collection %q: %w", e.cfg.DestCalendar, err)
	}
	records, err := dest.Events(ctx, model.Window{})
	if err != nil {
		return 0, fmt.Errorf("destination collection %q: %w", e.cfg.DestCalendar, err)
	}
	appLog.Info("clearing destination", "collection", dest.Name(), "record_count", len(records))

	deleted := 0
	for _, rec := range records {
		if e.dryRun {
			appLog.Info("would delete", "key", rec.Key(), "summary", rec.Summary)
			deleted++
			continue
		}
		if err := dest.Remove(ctx, rec); err != nil {
			appLog.Error("delete failed, continuing", err, "key", rec.Key())
			continue
		}
		appLog.Info("deleted destination record", "key", rec.Key())
		deleted++
	}
	return deleted, nil
}
