package watch

import (
	"errors"
	"sync"
	"time"

	"fo-go/internal/fo"
)

// DefaultWindow is the quiet period before a file is considered settled.
const DefaultWindow = 500 * time.Millisecond

// Debouncer coalesces bursts of raw filesystem notifications into single
// logical events. Each path gets its own window; any new activity on the path
// resets it. When the window closes the path is stat-ed: if the file exists
// and its size has not changed since last observed, an Appeared event is
// emitted, otherwise the window re-arms.
type Debouncer struct {
	window time.Duration
	fsmgr  fo.FilesystemManager
	emit   func(fo.WatchEvent)
	root   string

	mu       sync.Mutex
	pending  map[string]*pendingEntry
	stopped  bool
	inflight sync.WaitGroup
}

// pendingEntry tracks one path's open window. All fields are guarded by
// Debouncer.mu; gen identifies the arming that owns the current timer, so a
// timer invocation superseded by later activity can recognize itself as
// stale and return without acting.
type pendingEntry struct {
	timer    *time.Timer
	gen      uint64
	lastSize int64
	sized    bool
}

// NewDebouncer creates a debouncer for the given root. emit is called from
// timer goroutines as windows close; it must be safe for concurrent use.
func NewDebouncer(root string, window time.Duration, fsmgr fo.FilesystemManager, emit func(fo.WatchEvent)) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:  window,
		fsmgr:   fsmgr,
		emit:    emit,
		root:    root,
		pending: make(map[string]*pendingEntry),
	}
}

// Touch records write or create activity on a path, arming or resetting its
// debounce window.
func (d *Debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	entry, ok := d.pending[path]
	if !ok {
		entry = &pendingEntry{}
		d.pending[path] = entry
	} else if entry.timer != nil {
		entry.timer.Stop()
	}
	d.arm(path, entry)
}

// Gone records that a path was removed or renamed away. Any pending window is
// cancelled and a Disappeared event is emitted immediately.
func (d *Debouncer) Gone(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if entry, ok := d.pending[path]; ok {
		entry.timer.Stop()
		delete(d.pending, path)
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.emit(fo.WatchEvent{Kind: fo.Disappeared, Root: d.root, Path: path})
}

// Stop cancels all pending windows and waits for in-flight emissions.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for _, entry := range d.pending {
		entry.timer.Stop()
	}
	d.pending = nil
	d.mu.Unlock()

	d.inflight.Wait()
}

// arm starts a fresh window for the entry. Caller holds d.mu. Bumping gen
// invalidates any already-expired timer whose fire has not run yet.
func (d *Debouncer) arm(path string, entry *pendingEntry) {
	entry.gen++
	gen := entry.gen
	entry.timer = time.AfterFunc(d.window, func() { d.fire(path, gen) })
}

// fire runs when a path's window closes. gen ties the invocation to the
// arming that scheduled it; if the path was touched or cancelled since, the
// invocation is stale and does nothing.
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	entry, ok := d.pending[path]
	if d.stopped || !ok || entry.gen != gen {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	info, err := d.fsmgr.Stat(path)
	switch {
	case errors.Is(err, fo.ErrNotFound):
		// Appeared and vanished within the window.
		if d.finish(path, gen) {
			d.emit(fo.WatchEvent{Kind: fo.Disappeared, Root: d.root, Path: path})
		}
		return
	case err != nil:
		// Transient stat failure; try again next window.
		d.rearm(path, gen)
		return
	}

	if info.IsDir() {
		d.finish(path, gen)
		return
	}

	d.mu.Lock()
	entry, ok = d.pending[path]
	if d.stopped || !ok || entry.gen != gen {
		d.mu.Unlock()
		return
	}

	// A growing file is still being written; wait for a full quiet window
	// with a stable size.
	if !entry.sized || entry.lastSize != info.Size() {
		entry.sized = true
		entry.lastSize = info.Size()
		d.arm(path, entry)
		d.mu.Unlock()
		return
	}

	delete(d.pending, path)
	d.mu.Unlock()
	d.emit(fo.WatchEvent{Kind: fo.Appeared, Root: d.root, Path: path})
}

// rearm schedules another window if this generation still owns the path.
func (d *Debouncer) rearm(path string, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	entry, ok := d.pending[path]
	if !ok || entry.gen != gen {
		// Touch or Gone raced the window close; their arming wins.
		return
	}
	d.arm(path, entry)
}

// finish clears the path's entry, reporting whether this generation owned it.
func (d *Debouncer) finish(path string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[path]
	if !ok || entry.gen != gen {
		return false
	}
	delete(d.pending, path)
	return true
}
