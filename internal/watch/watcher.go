package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	eventBufferSize        = 64
	defaultDebounceTimeout = 50 * time.Millisecond
)

// FilterFunc drops an event when it returns true for its path.
type FilterFunc func(path string) bool

// Watcher reports debounced filesystem events under a directory.
// Bursts of events for the same path collapse into one, delivered
// after the debounce timeout has passed without further writes.
type Watcher struct {
	dir       string
	events    chan notify.EventInfo
	rawEvents chan notify.EventInfo
	done      chan struct{}
	wg        sync.WaitGroup

	pendingEvents   map[string]notify.EventInfo
	eventTimers     map[string]*time.Timer
	debounceMu      sync.Mutex
	closed          bool // guarded by debounceMu, set when events is closed
	debounceTimeout time.Duration

	filter FilterFunc
}

func NewWatcher(dir string) *Watcher {
	return &Watcher{
		dir:             dir,
		done:            make(chan struct{}),
		pendingEvents:   make(map[string]notify.EventInfo),
		eventTimers:     make(map[string]*time.Timer),
		debounceTimeout: defaultDebounceTimeout,
	}
}

// SetDebounceTimeout sets how long a path must stay quiet before its
// event is delivered.
func (w *Watcher) SetDebounceTimeout(timeout time.Duration) {
	w.debounceTimeout = timeout
}

// Filter installs a callback that drops raw events before debouncing.
// Must be called before Start.
func (w *Watcher) Filter(fn FilterFunc) {
	w.filter = fn
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("watcher start", "dir", w.dir)

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.events = make(chan notify.EventInfo, eventBufferSize)

	if err := notify.Watch(w.dir+"/...", w.rawEvents, notify.All); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.filterEvents(ctx)

	return nil
}

func (w *Watcher) Stop() {
	slog.Info("watcher stopping")

	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()

	slog.Info("watcher stopped")
}

func (w *Watcher) Events() <-chan notify.EventInfo {
	return w.events
}

func (w *Watcher) filterEvents(ctx context.Context) {
	defer func() {
		// cancel timers and flush whatever is still pending
		w.debounceMu.Lock()
		for path, timer := range w.eventTimers {
			timer.Stop()
			if event, exists := w.pendingEvents[path]; exists {
				select {
				case w.events <- event:
				default:
					slog.Warn("watcher channel full during exit, dropping event", "path", path)
				}
			}
		}
		w.closed = true
		close(w.events)
		w.debounceMu.Unlock()

		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if w.filter != nil && w.filter(event.Path()) {
				continue
			}
			// writes arrive as bursts, collapse them per path
			w.debounceEvent(event)
		}
	}
}

func (w *Watcher) debounceEvent(event notify.EventInfo) {
	path := event.Path()

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.eventTimers[path]; exists {
		timer.Stop()
		delete(w.eventTimers, path)
	}

	w.pendingEvents[path] = event

	w.eventTimers[path] = time.AfterFunc(w.debounceTimeout, func() {
		w.flushEvent(path)
	})
}

func (w *Watcher) flushEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.closed {
		return
	}
	event, exists := w.pendingEvents[path]
	if !exists {
		return
	}
	delete(w.pendingEvents, path)
	delete(w.eventTimers, path)

	// sending under debounceMu keeps the send ordered before close
	select {
	case w.events <- event:
		slog.Debug("watcher event", "event", event.Event(), "path", path)
	default:
		slog.Warn("watcher dropped event", "reason", "channel full", "path", path)
	}
}
