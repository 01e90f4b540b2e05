package testutil

import (
	"sync"

	"fo-go/internal/fo"
)

// StubWatchSession is a hand-driven watch session: tests push events with
// Emit and the coordinator consumes them like real watcher output.
type StubWatchSession struct {
	root string
	ch   chan fo.WatchEvent
	once sync.Once
}

func NewStubWatchSession(root string) *StubWatchSession {
	return &StubWatchSession{root: root, ch: make(chan fo.WatchEvent, 16)}
}

func (s *StubWatchSession) Root() string { return s.root }

func (s *StubWatchSession) Events() <-chan fo.WatchEvent { return s.ch }

func (s *StubWatchSession) Stop() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// Emit delivers an event to the session's consumer.
func (s *StubWatchSession) Emit(ev fo.WatchEvent) {
	ev.Root = s.root
	s.ch <- ev
}

// EmitAppeared is shorthand for an Appeared event on path.
func (s *StubWatchSession) EmitAppeared(path string) {
	s.Emit(fo.WatchEvent{Kind: fo.Appeared, Path: path})
}

// StubWatcherFactory hands out StubWatchSessions and records them by root.
type StubWatcherFactory struct {
	mu       sync.Mutex
	sessions map[string]*StubWatchSession

	// StartErr, when set, is returned by Start.
	StartErr error
}

func NewStubWatcherFactory() *StubWatcherFactory {
	return &StubWatcherFactory{sessions: make(map[string]*StubWatchSession)}
}

func (f *StubWatcherFactory) Start(root string) (fo.WatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartErr != nil {
		return nil, f.StartErr
	}
	s := NewStubWatchSession(root)
	f.sessions[root] = s
	return s, nil
}

// Session returns the session started for root, if any.
func (f *StubWatcherFactory) Session(root string) *StubWatchSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[root]
}

// Compile-time checks
var (
	_ fo.WatchSession   = (*StubWatchSession)(nil)
	_ fo.WatcherFactory = (*StubWatcherFactory)(nil)
)
