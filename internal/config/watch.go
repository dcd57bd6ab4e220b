package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	appLog "github.com/illixion/CalendarTransformer/internal/log"
)

// Watch starts a background goroutine that reloads the config whenever
// the file at path is written or recreated, invoking onChange with each
// successfully loaded config. A load failure keeps the previous config
// and is logged. Call the returned stop function to clean up.
func Watch(path string, onChange func(*Config)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					appLog.Error("config reload failed, keeping previous", err, "path", path)
					continue
				}
				if err := cfg.Validate(); err != nil {
					appLog.Error("config reload invalid, keeping previous", err, "path", path)
					continue
				}
				appLog.Info("config reloaded", "path", path, "filter_sets", len(cfg.FilterSets))
				onChange(cfg)
			case <-w.Errors:
				// Watcher errors are not actionable here.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
