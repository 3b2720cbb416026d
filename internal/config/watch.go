package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and calls onChange with the newly
// loaded Config each time it is rewritten. It runs until ctx is cancelled.
//
// Thresholds are immutable for the process lifetime; onChange is
// informational (the caller logs the difference and keeps running with the
// original limits). A file that fails to reload leaves the previous config
// active and does not invoke onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}
	slog.Info("config: watching", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Writes and creates both count: editors and config
			// management tools usually save atomically, which lands as
			// a rename+create rather than a write.
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				reload(path, onChange)
				// An atomic save replaced the inode; watch the new one.
				_ = w.Add(path)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watch error", "path", path, "err", err)
		}
	}
}

func reload(path string, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		slog.Error("config: ignoring change — file no longer loads",
			"path", path, "err", err)
		return
	}
	slog.Info("config: reloaded", "path", path, "job", cfg.Jenkins.Job)
	onChange(cfg)
}
