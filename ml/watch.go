package ml

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// BundleWatcher flags the serving bundle as stale once the artifacts on disk no
// longer match it. It never reloads; picking up a new bundle takes a restart.
type BundleWatcher struct {
	dir      string
	bundleID string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	stale    atomic.Bool
	done     chan struct{}
}

func WatchBundle(dir, bundleID string, logger *zap.Logger) (*BundleWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir = filepath.Clean(dir)
	// The parent sees the directory being renamed over by a new save.
	for _, path := range []string{filepath.Dir(dir), dir} {
		if err := fw.Add(path); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &BundleWatcher{
		dir:      dir,
		bundleID: bundleID,
		logger:   logger,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *BundleWatcher) Stale() bool {
	return w.stale.Load()
}

func (w *BundleWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *BundleWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.check()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *BundleWatcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == w.dir || strings.HasPrefix(name, w.dir+string(filepath.Separator))
}

func (w *BundleWatcher) check() {
	manifest, err := InspectBundle(w.dir)
	stale := err != nil || manifest.BundleID != w.bundleID
	if stale && !w.stale.Load() {
		fields := []zap.Field{zap.String("dir", w.dir), zap.String("bundle_id", w.bundleID)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.String("disk_bundle_id", manifest.BundleID))
		}
		w.logger.Warn("artifact bundle on disk changed; restart to serve it", fields...)
	}
	w.stale.Store(stale)
}
