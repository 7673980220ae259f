package snapshot

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher calls onChange once a burst of writes to snapshot documents in a
// directory has settled for the debounce interval.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(context.Context)
	logger   logging.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

func NewWatcher(dir string, debounce time.Duration, onChange func(context.Context), logger logging.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to watch snapshot directory").WithDetail(dir)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.Named("snapshot.watcher"),
		watcher:  fw,
	}, nil
}

func isSnapshotDocument(path string) bool {
	switch filepath.Base(path) {
	case IndexFile, FacilitiesFile, PriceFile, LocationFile, LandmarksFile:
		return true
	}
	return false
}

// Run blocks until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimer()
	w.logger.Info("watching snapshot directory", logging.String("dir", w.dir), logging.Duration("debounce", w.debounce))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isSnapshotDocument(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.logger.Debug("snapshot document changed", logging.String("file", ev.Name), logging.String("op", ev.Op.String()))
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) Close() error { return w.watcher.Close() }

//Personal.AI order the ending
