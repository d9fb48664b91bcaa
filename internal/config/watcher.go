package config

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const pollInterval = 60 * time.Second

// Watch reloads the config file on change and calls onChange with the new
// config. Uses fsnotify with a slow polling loop as fallback, so a missed
// event never leaves the session on stale settings forever.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Config)) {
	if path == "" {
		return
	}

	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Warn().Err(err).Msg("config reload failed, keeping current settings")
			return
		}
		onChange(cfg)
	}

	watcher, err := fsnotify.NewWatcher()
	useWatcher := err == nil
	if useWatcher {
		if err := watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config watch failed, polling only")
			watcher.Close()
			useWatcher = false
		}
	} else {
		log.Warn().Err(err).Msg("fsnotify unavailable, polling only")
	}

	if useWatcher {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						// Editors often write in bursts; settle first.
						time.Sleep(100 * time.Millisecond)
						log.Info().Str("path", path).Msg("config changed, reloading")
						reload()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Warn().Err(err).Msg("config watcher error")
				}
			}
		}()
	}

	// Polling safety net, mtime-gated to avoid reload spam.
	go func() {
		var lastMod time.Time
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if !info.ModTime().Equal(lastMod) {
					if !lastMod.IsZero() {
						reload()
					}
					lastMod = info.ModTime()
				}
			}
		}
	}()
}
