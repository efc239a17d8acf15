package nativeplatform

import (
	"context"
	"strconv"
)

// WindowEnumerator lists the window titles owned by a process.
type WindowEnumerator struct {
	provider Provider
	cfg      Config
}

// NewWindowEnumerator returns an enumerator over provider.
func NewWindowEnumerator(provider Provider, cfg Config) *WindowEnumerator {
	return &WindowEnumerator{provider: provider, cfg: cfg}
}

// FindWindowTitles returns the titles of the visible top-level windows owned
// by pid. The order is whatever the window system enumerates and differs
// between platforms and calls. A process without windows, an unknown pid
// and an unsupported platform all yield an empty result.
func (we *WindowEnumerator) FindWindowTitles(ctx context.Context, pid ProcessID) ([]string, error) {
	backend, ok := we.provider.Backend()
	if !ok || pid <= 0 {
		return []string{}, nil
	}

	ctx, cancel := withQueryTimeout(ctx, we.cfg)
	defer cancel()

	titles, err := backend.WindowTitles(ctx, pid)
	if err != nil {
		return nil, &BackendError{Op: "find window titles", Subject: strconv.Itoa(int(pid)), Err: err}
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}
