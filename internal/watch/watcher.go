package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"fo-go/internal/fo"
	"fo-go/internal/fs"
)

// Factory starts fsnotify-backed watch sessions. Watches are non-recursive:
// only direct children of the root are observed, which keeps organization
// destinations inside the root from feeding back into the watcher.
type Factory struct {
	window time.Duration
	fsmgr  fo.FilesystemManager
	ignore *fs.IgnoreMatcher
	logger fo.Logger
}

// NewFactory creates a watcher factory. A nil ignore matcher falls back to
// the default hidden/in-progress patterns.
func NewFactory(window time.Duration, fsmgr fo.FilesystemManager, ignore *fs.IgnoreMatcher, logger fo.Logger) *Factory {
	if ignore == nil {
		ignore = fs.NewDefaultIgnoreMatcher()
	}
	if logger == nil {
		logger = &fo.NopLogger{}
	}
	return &Factory{window: window, fsmgr: fsmgr, ignore: ignore, logger: logger}
}

// Start subscribes to OS notifications for the root folder.
func (f *Factory) Start(root string) (fo.WatchSession, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	s := &session{
		root:   root,
		w:      w,
		out:    make(chan fo.WatchEvent, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		ignore: f.ignore,
		logger: f.logger,
	}
	s.deb = NewDebouncer(root, f.window, f.fsmgr, s.send)

	go func() {
		s.loop()
		s.deb.Stop()
		close(s.out)
		close(s.closed)
	}()

	return s, nil
}

type session struct {
	root   string
	w      *fsnotify.Watcher
	deb    *Debouncer
	out    chan fo.WatchEvent
	done   chan struct{}
	closed chan struct{}
	ignore *fs.IgnoreMatcher
	logger fo.Logger
	once   sync.Once
}

func (s *session) Root() string { return s.root }

func (s *session) Events() <-chan fo.WatchEvent { return s.out }

// Stop cancels the subscription and pending debounce windows. The event
// channel is closed once in-flight emissions drain.
func (s *session) Stop() error {
	s.shutdown()
	<-s.closed
	return nil
}

func (s *session) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.w.Close()
	})
}

// send delivers an event unless the session is shutting down.
func (s *session) send(ev fo.WatchEvent) {
	select {
	case s.out <- ev:
	case <-s.done:
	}
}

func (s *session) loop() {
	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			s.handle(ev)

		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			s.logger.Error("watch subscription failed", "root", s.root, "error", err)
			s.send(fo.WatchEvent{Kind: fo.WatchLost, Root: s.root})
			s.shutdown()
			return
		}
	}
}

func (s *session) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil || s.ignore.Match(rel) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		s.deb.Touch(ev.Name)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		s.deb.Gone(ev.Name)
	}
	// Chmod is metadata-only noise and never arms a window.
}

// Compile-time checks for the watch interfaces.
var (
	_ fo.WatcherFactory = (*Factory)(nil)
	_ fo.WatchSession   = (*session)(nil)
)
