package definition

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgeworks/workflowforge/internal/log"
)

// WatcherConfig configures a directory Watcher.
type WatcherConfig struct {
	Dir      string
	Debounce time.Duration
}

// DefaultWatcherConfig returns sensible defaults for watching dir.
func DefaultWatcherConfig(dir string) WatcherConfig {
	return WatcherConfig{Dir: dir, Debounce: 200 * time.Millisecond}
}

// Watcher signals whenever the YAML files in a directory change,
// debouncing bursts of filesystem events into a single signal. It loads
// no definitions itself; callers reload them on each signal.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// NewWatcher creates a Watcher for cfg.Dir. Call Start to begin watching.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("definition: creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  cfg.Debounce,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the configured directory. The returned channel
// receives a signal after a debounced burst of relevant changes; callers
// should reload definitions via LoadDir on each signal.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("definition: watching directory %s: %w", w.dir, err)
	}
	log.Info(log.CatDefinition, "started watching definitions directory", "dir", w.dir)
	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases its resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var pending bool

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}

		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-timerC:
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatDefinition, "definitions watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return isYAMLFile(filepath.Base(event.Name))
}
