// Command caltransform mirrors events from source CalDAV calendars into
// one destination calendar, applying per-source filter and transform
// rules. The default mode is a single merge run; -daemon repeats the run
// on the configured cron schedule, and -clear wipes the destination.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/illixion/CalendarTransformer/internal/caldav"
	"github.com/illixion/CalendarTransformer/internal/config"
	appLog "github.com/illixion/CalendarTransformer/internal/log"
	engine "github.com/illixion/CalendarTransformer/internal/sync"
	"github.com/illixion/CalendarTransformer/internal/web"
)

type flagConfig struct {
	configPath string
	daemon     bool
	clear      bool
	dryRun     bool
	verbose    bool
}

func main() {
	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("caltransform starting",
		"dest_calendar", cfg.DestCalendar,
		"filter_sets", len(cfg.FilterSets),
		"sources", len(cfg.SourceCalendars()),
		"daemon", flags.daemon,
		"dry_run", flags.dryRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	switch {
	case flags.clear:
		if err := runClear(ctx, cfg, flags.dryRun); err != nil {
			appLog.Error("clear failed", err)
			os.Exit(1)
		}
	case flags.daemon:
		runDaemon(ctx, flags.configPath, cfg, flags.dryRun)
	default:
		if err := runOnce(ctx, cfg, flags.dryRun); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
	}
}

// runOnce performs one merge run against a freshly constructed client,
// so every invocation reads both sides from scratch.
func runOnce(ctx context.Context, cfg *config.Config, dryRun bool) error {
	client, err := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
	if err != nil {
		return err
	}
	eng := engine.New(client.Directory(), cfg, engine.WithDryRun(dryRun))
	_, err = eng.Run(ctx)
	return err
}

func runClear(ctx context.Context, cfg *config.Config, dryRun bool) error {
	client, err := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
	if err != nil {
		return err
	}
	eng := engine.New(client.Directory(), cfg, engine.WithDryRun(dryRun))
	deleted, err := eng.Clear(ctx)
	if err != nil {
		return err
	}
	appLog.Info("destination cleared", "deleted", deleted, "dry_run", dryRun)
	return nil
}

// runDaemon repeats the merge on the configured cron schedule with config
// hot-reload. A tick that fires while the previous run is still active is
// skipped: two concurrent runs against one destination are unsafe.
func runDaemon(ctx context.Context, configPath string, cfg *config.Config, dryRun bool) {
	var (
		cfgMu   sync.RWMutex
		current = cfg
		running sync.Mutex
	)

	stopWatch, err := config.Watch(configPath, func(next *config.Config) {
		cfgMu.Lock()
		current = next
		cfgMu.Unlock()
	})
	if err != nil {
		appLog.Error("config watcher unavailable, hot-reload disabled", err, "config_path", configPath)
	} else {
		defer stopWatch()
	}

	if cfg.Listen != "" {
		go web.Start(ctx, cfg.Listen)
	}

	tick := func() {
		if !running.TryLock() {
			appLog.Info("previous run still active, skipping tick")
			return
		}
		defer running.Unlock()

		cfgMu.RLock()
		snapshot := current
		cfgMu.RUnlock()

		if err := runOnce(ctx, snapshot, dryRun); err != nil {
			appLog.Error("scheduled run failed", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, tick); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", cfg.RefreshCron)
		os.Exit(1)
	}

	appLog.Info("daemon started", "refresh", cfg.RefreshCron, "listen", cfg.Listen)
	tick() // initial run without waiting for the first tick
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("daemon exiting")
}

func parseFlags() flagConfig {
	var f flagConfig
	flag.StringVar(&f.configPath, "config", "config.yaml", "Path to config file")
	flag.BoolVar(&f.daemon, "daemon", false, "Run continuously on the configured refresh schedule")
	flag.BoolVar(&f.clear, "clear", false, "Delete every event from the destination calendar and exit")
	flag.BoolVar(&f.dryRun, "dry-run", false, "Log mutations without executing them")
	flag.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	flag.Parse()
	return f
}
