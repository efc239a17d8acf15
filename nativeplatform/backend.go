package nativeplatform

import (
	"context"
	"fmt"
)

// ProcessID is an operating system process identifier.
type ProcessID int32

// Backend performs the platform specific enumeration calls. Implementations
// are created once by a Loader and are never released.
type Backend interface {
	// PidsHoldingFile returns the raw ids of processes holding an open
	// handle on path. Ids may repeat and may belong to processes that have
	// exited since.
	PidsHoldingFile(ctx context.Context, path string) ([]ProcessID, error)

	// WindowTitles returns the titles of the visible top-level windows owned
	// by pid, in enumeration order.
	WindowTitles(ctx context.Context, pid ProcessID) ([]string, error)
}

// Loader materializes the backend for one platform key.
type Loader func(cfg Config) (Backend, error)

// BackendError is returned when a loaded backend fails a query.
type BackendError struct {
	Op      string
	Subject string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("nativeplatform: %s %q: %v", e.Op, e.Subject, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
