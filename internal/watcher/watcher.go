package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a change to the watched file.
type Event struct {
	Path string // Absolute path of the changed file
	Op   string // "write", "create" or "rename"
}

// Watcher monitors a single configuration file for changes. It watches the
// file's directory so editors that save through rename are still seen.
// Bursts of events within the debounce window collapse into one callback.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(Event)
	fsw      *fsnotify.Watcher
	done     chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Watcher for path. onChange is called once per debounced
// burst of changes.
func New(path string, debounce time.Duration, onChange func(Event)) *Watcher {
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It resolves the file's absolute path and starts a
// goroutine to process events.
func (w *Watcher) Start() error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	w.path = abs

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	go w.loop()
	return nil
}

// Stop terminates the watcher. Pending debounced callbacks are dropped.
func (w *Watcher) Stop() {
	if w.fsw != nil {
		w.fsw.Close()
		<-w.done
	}
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Ignore watcher errors; the next write triggers a reload anyway.
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	op := opName(ev.Op)
	if op == "" {
		return
	}
	event := Event{Path: w.path, Op: op}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.debounce <= 0 {
		go w.onChange(event)
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.onChange(event) })
}

// opName maps the operations worth a reload, "" otherwise.
func opName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Rename != 0:
		return "rename"
	default:
		return ""
	}
}
