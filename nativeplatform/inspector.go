package nativeplatform

import (
	"context"
	"sort"

	"github.com/shirou/gopsutil/process"
)

// LiveCheck reports whether pid belongs to a running process.
type LiveCheck func(ctx context.Context, pid ProcessID) bool

// LockInspector finds the live processes holding a file open.
type LockInspector struct {
	provider Provider
	cfg      Config
	alive    LiveCheck
}

// NewLockInspector returns an inspector over provider. A nil alive falls back
// to asking the process table.
func NewLockInspector(provider Provider, cfg Config, alive LiveCheck) *LockInspector {
	if alive == nil {
		alive = pidExists
	}
	return &LockInspector{provider: provider, cfg: cfg, alive: alive}
}

// FindLockHolders returns the ids of processes that currently hold an open
// handle on path. The result is a set: duplicates are collapsed and ids of
// processes that have exited are dropped. On an unsupported platform the
// result is empty and err is nil.
func (li *LockInspector) FindLockHolders(ctx context.Context, path string) ([]ProcessID, error) {
	backend, ok := li.provider.Backend()
	if !ok {
		return nil, nil
	}

	ctx, cancel := withQueryTimeout(ctx, li.cfg)
	defer cancel()

	raw, err := backend.PidsHoldingFile(ctx, path)
	if err != nil {
		return nil, &BackendError{Op: "find lock holders", Subject: path, Err: err}
	}

	seen := make(map[ProcessID]struct{}, len(raw))
	holders := make([]ProcessID, 0, len(raw))
	for _, pid := range raw {
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}

		if li.alive(ctx, pid) {
			holders = append(holders, pid)
		}
	}

	sort.Slice(holders, func(i, j int) bool { return holders[i] < holders[j] })
	return holders, nil
}

func pidExists(ctx context.Context, pid ProcessID) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && exists
}

func withQueryTimeout(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.QueryTimeout)
}
