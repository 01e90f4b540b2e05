package fo

// WatchEventKind classifies a logical watcher event after debouncing.
type WatchEventKind int

const (
	// Appeared means the path exists and its size was stable when the
	// debounce window closed. Only Appeared events trigger organization.
	Appeared WatchEventKind = iota

	// Disappeared means the path no longer exists. Forwarded for metadata
	// store reconciliation only.
	Disappeared

	// WatchLost means the OS subscription failed after start (folder
	// unmounted, watcher error). Terminal for the session.
	WatchLost
)

func (k WatchEventKind) String() string {
	switch k {
	case Appeared:
		return "appeared"
	case Disappeared:
		return "disappeared"
	case WatchLost:
		return "watch_lost"
	}
	return "unknown"
}

// WatchEvent is one debounced notification from a watch session.
type WatchEvent struct {
	Kind WatchEventKind
	Root string // The session's root folder
	Path string // Absolute path of the affected file; empty for WatchLost
}

// WatchSession is one active subscription on a root folder. Events are
// delivered in the order their debounce windows close. The channel is closed
// after Stop or after a terminal WatchLost event.
type WatchSession interface {
	Root() string
	Events() <-chan WatchEvent

	// Stop cancels pending debounce timers and stops forwarding events.
	// It does not cancel organization operations already dispatched.
	Stop() error
}

// WatcherFactory starts watch sessions. The coordinator owns the registry of
// active sessions; the factory only creates them.
type WatcherFactory interface {
	// Start subscribes to OS notifications for the root folder. The root must
	// be an existing, readable directory.
	Start(root string) (WatchSession, error)
}
