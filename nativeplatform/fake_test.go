package nativeplatform

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeBackend returns canned results and records the calls it receives.
type fakeBackend struct {
	mu        sync.Mutex
	pids      []ProcessID
	titles    map[ProcessID][]string
	err       error
	lockCalls int
}

func (f *fakeBackend) PidsHoldingFile(_ context.Context, _ string) ([]ProcessID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]ProcessID(nil), f.pids...), nil
}

func (f *fakeBackend) WindowTitles(_ context.Context, pid ProcessID) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.titles[pid], nil
}

// countingLoader returns a Loader that counts its invocations.
func countingLoader(b Backend, err error) (Loader, *atomic.Int32) {
	var calls atomic.Int32
	return func(Config) (Backend, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		return b, nil
	}, &calls
}

func discardLog(string, string, error) {}

func aliveSet(pids ...ProcessID) LiveCheck {
	set := make(map[ProcessID]bool, len(pids))
	for _, p := range pids {
		set[p] = true
	}
	return func(_ context.Context, pid ProcessID) bool { return set[pid] }
}
