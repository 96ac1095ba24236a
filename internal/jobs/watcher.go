package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/ingest"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
)

const DefaultDebounce = 2 * time.Second

// DirWatcher triggers a processor when documents under a directory change.
// Bursts of events collapse into one run after the debounce delay.
type DirWatcher struct {
	root      string
	processor JobProcessor
	debounce  time.Duration
	logger    logrus.FieldLogger
}

func NewDirWatcher(root string, processor JobProcessor, debounce time.Duration, logger logrus.FieldLogger) *DirWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &DirWatcher{
		root:      filepath.Clean(root),
		processor: processor,
		debounce:  debounce,
		logger:    logging.OrDiscard(logger).WithField("component", "watcher"),
	}
}

// Run watches until ctx is done. New subdirectories are picked up as they
// appear.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	w.logger.WithFields(logrus.Fields{"root": w.root, "debounce": w.debounce.String()}).Info("watching for document changes")

	runCtx, cancel := context.WithCancel(ctx)
	pending := make(chan struct{}, 1)
	finished := make(chan struct{})
	go w.process(runCtx, pending, finished)
	defer func() {
		cancel()
		<-finished
	}()

	debounce := time.NewTimer(w.debounce)
	debounce.Stop()
	defer debounce.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			fire = nil
			select {
			case pending <- struct{}{}:
			default:
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, event.Name); err != nil {
						w.logger.WithError(err).Warn("failed to watch new directory")
					}
					continue
				}
			}
			if w.relevant(event) {
				w.logger.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("document changed")
				debounce.Reset(w.debounce)
				fire = debounce.C
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("watch error")
		}
	}
}

// process runs the processor once per queued trigger, one run at a time.
// Triggers that arrive during a run collapse into a single follow-up run.
func (w *DirWatcher) process(ctx context.Context, pending <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	for {
		select {
		case <-ctx.Done():
			return
		case <-pending:
			if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
				w.logger.WithError(err).Error("error processing document changes")
			}
		}
	}
}

func (w *DirWatcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && event.Op == fsnotify.Chmod {
		return false
	}
	return ingest.Supported(ingest.Entry{ID: filepath.ToSlash(event.Name)})
}

func (w *DirWatcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
