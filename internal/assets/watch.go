package assets

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch calls onChange after frame files under dirs change, coalescing
// bursts of events within debounce. It blocks until ctx is cancelled.
// New subdirectories are watched as they appear.
func Watch(ctx context.Context, dirs []string, debounce time.Duration, log *zap.Logger, onChange func()) error {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := addTree(w, dir); err != nil {
			return err
		}
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				_ = addTree(w, event.Name)
			}
			if !IsImage(event.Name) && filepath.Ext(event.Name) != "" {
				continue
			}
			log.Debug("frame change", zap.String("path", event.Name), zap.Stringer("op", event.Op))

			stop()
			timer = time.NewTimer(debounce)
			trigger = timer.C

		case <-trigger:
			trigger = nil
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("frame watcher error", zap.Error(err))
		}
	}
}

// addTree watches dir and every directory below it. Non-directories are ignored.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
