package fo

import "errors"

// Sentinel errors for conditions callers need to distinguish with errors.Is.
// Everything else is wrapped context via fmt.Errorf("%w").
var (
	// ErrNotFound means a referenced file, folder, tag, or rule does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means the OS refused access to a path.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyWatching means a watch session is already active for the root.
	ErrAlreadyWatching = errors.New("already watching")

	// ErrStoreUnavailable means the metadata store cannot be reached. Fatal
	// for the session; the engine stops accepting organization work until the
	// store recovers.
	ErrStoreUnavailable = errors.New("metadata store unavailable")

	// ErrRemoteUnavailable means the backup vault cannot be reached. Always
	// transient: the backup queue retries with backoff.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)
