// Package config provides the YAML configuration model and load/save
// behavior, including first-run config creation, 0600 permissions and
// folding of deprecated retention aliases into the canonical policy.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/illixion/CalendarTransformer/internal/model"
)

// DefaultCalDAVURL is the endpoint used when the config file leaves the
// server URL empty.
const DefaultCalDAVURL = "https://caldav.fastmail.com/dav/"

// CalDAVConfig holds the server endpoint and basic-auth credentials.
type CalDAVConfig struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Filters selects which source records a filter set applies to. String
// matching is case-sensitive substring containment; an empty list is
// vacuously true.
type Filters struct {
	CalendarName    string `yaml:"calendar_name" json:"calendar_name"`
	NotCalendarName string `yaml:"not_calendar_name" json:"not_calendar_name"`

	SummaryContains     []string `yaml:"summary_contains" json:"summary_contains"`
	SummaryNotContains  []string `yaml:"summary_not_contains" json:"summary_not_contains"`
	LocationContains    []string `yaml:"location_contains" json:"location_contains"`
	LocationNotContains []string `yaml:"location_not_contains" json:"location_not_contains"`
}

// Transform rewrites fields of matched records. Pointer fields override
// only when present, so an explicit empty string is a valid override.
type Transform struct {
	SetSummary       *string `yaml:"set_summary" json:"set_summary"`
	SetLocation      *string `yaml:"set_location" json:"set_location"`
	SetParticipation *string `yaml:"set_participation" json:"set_participation"`

	StripSummary  bool `yaml:"strip_summary" json:"strip_summary"`
	StripLocation bool `yaml:"strip_location" json:"strip_location"`

	StripSummaryIfContains     []string `yaml:"strip_summary_if_contains" json:"strip_summary_if_contains"`
	StripSummaryIfNotContains  []string `yaml:"strip_summary_if_not_contains" json:"strip_summary_if_not_contains"`
	StripLocationIfContains    []string `yaml:"strip_location_if_contains" json:"strip_location_if_contains"`
	StripLocationIfNotContains []string `yaml:"strip_location_if_not_contains" json:"strip_location_if_not_contains"`
}

// FilterSet pairs a selector with its transform rule. Filter sets are
// evaluated in configuration order.
type FilterSet struct {
	Filters   Filters   `yaml:"filters" json:"filters"`
	Transform Transform `yaml:"transform" json:"transform"`
}

// RetentionConfig is the on-disk retention surface. KeepPastDays and
// ScanFutureDays are canonical; HistoryDays is a deprecated alias folded
// in by Normalize.
type RetentionConfig struct {
	KeepPastDays   *int `yaml:"keep_past_days" json:"keep_past_days"`
	ScanFutureDays int  `yaml:"scan_future_days" json:"scan_future_days"`

	// Deprecated: use keep_past_days.
	HistoryDays *int `yaml:"history_days,omitempty" json:"history_days,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	CalDAV CalDAVConfig `yaml:"caldav" json:"caldav"`

	// DestCalendar is the destination collection name. Required.
	DestCalendar string `yaml:"dest_calendar" json:"dest_calendar"`

	Retention RetentionConfig `yaml:"retention" json:"retention"`

	// Deprecated: use retention.keep_past_days.
	MaxAgeDays *int `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`

	// RefreshCron is the daemon-mode schedule, e.g. "*/30 * * * *".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the daemon-mode HTTP address for /health and /metrics.
	// Empty disables the listener.
	Listen string `yaml:"listen" json:"listen"`

	FilterSets []FilterSet `yaml:"filter_sets" json:"filter_sets"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		CalDAV:      CalDAVConfig{URL: DefaultCalDAVURL},
		RefreshCron: "*/30 * * * *",
		Retention: RetentionConfig{
			ScanFutureDays: model.DefaultScanFutureDays,
		},
		FilterSets: []FilterSet{},
	}
}

// Normalize fills in missing values and folds deprecated retention
// aliases (max_age_days, retention.history_days) into
// retention.keep_past_days, oldest alias last.
func (c *Config) Normalize() {
	if c.CalDAV.URL == "" {
		c.CalDAV.URL = DefaultCalDAVURL
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.Retention.ScanFutureDays <= 0 {
		c.Retention.ScanFutureDays = model.DefaultScanFutureDays
	}
	if c.Retention.KeepPastDays == nil {
		if c.Retention.HistoryDays != nil {
			c.Retention.KeepPastDays = c.Retention.HistoryDays
		} else if c.MaxAgeDays != nil {
			c.Retention.KeepPastDays = c.MaxAgeDays
		}
	}
	c.Retention.HistoryDays = nil
	c.MaxAgeDays = nil
	if c.FilterSets == nil {
		c.FilterSets = []FilterSet{}
	}
}

// Validate reports configuration problems that must abort startup.
func (c *Config) Validate() error {
	if c.DestCalendar == "" {
		return errors.New("config: dest_calendar is required")
	}
	if c.CalDAV.URL == "" {
		return errors.New("config: caldav.url is required")
	}
	return nil
}

// Policy returns the canonical retention policy. An absent
// keep_past_days disables the retention trigger (negative KeepPastDays).
func (c *Config) Policy() model.RetentionPolicy {
	keep := -1
	if c.Retention.KeepPastDays != nil {
		keep = *c.Retention.KeepPastDays
	}
	return model.RetentionPolicy{
		KeepPastDays:   keep,
		ScanFutureDays: c.Retention.ScanFutureDays,
	}
}

// SourceCalendars returns the distinct source collection names selected
// by the filter sets, in first-appearance order, excluding the
// destination.
func (c *Config) SourceCalendars() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(c.FilterSets))
	for _, fs := range c.FilterSets {
		name := fs.Filters.CalendarName
		if name == "" || name == c.DestCalendar || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Load loads configuration from the given YAML path. If the file does
// not exist, a default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".caltransform-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
