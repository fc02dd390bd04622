package workspace

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reconcileDelay is how long to wait after a rename or remove before
// checking whether the file came back, as editors that save by renaming do.
const reconcileDelay = 200 * time.Millisecond

// ChangeFunc receives the new content of a note file.
type ChangeFunc func(name string, data []byte)

// Watch reports external edits to note files until ctx is cancelled. Writes
// made through the workspace itself and writes that leave the content
// unchanged are not reported.
func (w *Workspace) Watch(ctx context.Context, logger *slog.Logger, cb ChangeFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", w.root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := make(map[string]struct{})

	scheduleReconcile := func(name string) {
		pending[name] = struct{}{}
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	emit := func(name string) {
		data, err := w.Read(name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("watcher: read failed", slog.String("path", name), slog.String("error", err.Error()))
			}
			return
		}
		if !w.changed(name, Sum(data)) {
			return
		}
		logger.Debug("watcher: changed", slog.String("path", name))
		cb(name, data)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			for name := range pending {
				emit(name)
			}
			clear(pending)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, Ext) {
				continue
			}
			name, relErr := filepath.Rel(w.root, ev.Name)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				emit(name)
			case ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				scheduleReconcile(name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
