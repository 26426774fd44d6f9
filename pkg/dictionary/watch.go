package dictionary

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 250 * time.Millisecond

// Watcher reloads a Registry when table files in its directory change.
type Watcher struct {
	dir      string
	registry *Registry
	fsw      *fsnotify.Watcher
	reload   *debounce.Debouncer[string]
	done     chan struct{}
}

// Watch starts watching dir. Close stops it.
func Watch(dir string, registry *Registry, clk clock.Clock, delay time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if delay <= 0 {
		delay = DefaultReloadDelay
	}

	w := &Watcher{
		dir:      dir,
		registry: registry,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	w.reload = debounce.New(clock.OrReal(clk), delay, w.apply)
	go w.loop()
	log.Debugf("Watching %s for table changes", dir)
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if relevant(ev) {
				w.reload.Push(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("Watcher error: %v", err)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !utils.IsTableFile(filepath.Base(ev.Name)) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) apply(trigger string) {
	changed, err := w.registry.Reload(w.dir)
	if err != nil {
		log.Warnf("Reload after %s failed, keeping previous tables: %v", filepath.Base(trigger), err)
		return
	}
	if len(changed) == 0 {
		log.Debugf("Reload after %s: no changes", filepath.Base(trigger))
	}
}

// Close stops watching and drops any pending reload.
func (w *Watcher) Close() error {
	w.reload.Stop()
	err := w.fsw.Close()
	<-w.done
	return err
}
