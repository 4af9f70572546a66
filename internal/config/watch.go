package config

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "dailyverse/pkg/logx"
)

// reloadDelay coalesces the burst of events editors produce on save.
const reloadDelay = 300 * time.Millisecond

// Watch reloads the config file on change until ctx ends, returning
// ctx.Err(). It returns any other error when the watcher breaks; callers
// restart it.
//
// The directory is watched rather than the file so that editors which
// replace the file by rename are still seen.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir, name := filepath.Dir(m.path), filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug("watching config", logx.String("path", m.path))

	pending := time.NewTimer(reloadDelay)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if filepath.Base(ev.Name) == name && !ev.Has(fsnotify.Chmod) {
				pending.Reset(reloadDelay)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; one reload catches up.
				pending.Reset(reloadDelay)
				continue
			}
			m.log.Warn("config watcher error", logx.Err(err))

		case <-pending.C:
			m.reload(ctx)
		}
	}
}
