package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-camrig/internal/rigerr"
)

// reloadDebounce folds the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// WatchConfig reloads the rig whenever path is written, created or renamed
// into place. It watches the parent directory so atomic saves are seen.
// Blocks until ctx ends.
func (r *Rig) WatchConfig(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return rigerr.Unavailable(err, "config watcher")
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return rigerr.Unavailable(err, "config path %s", path)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return rigerr.Unavailable(err, "watch %s", filepath.Dir(abs))
	}
	log.Info().Str("path", abs).Msg("watching config")

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, func() {
				log.Info().Str("path", abs).Msg("config changed; reloading")
				r.Do(r.Reload)
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher")
		}
	}
}
