package nativeplatform

import (
	"context"
	"runtime"
	"sync"
)

// Platform bundles a gate with the two query components built on it.
type Platform struct {
	gate    *Gate
	once    sync.Once
	locks   *LockInspector
	windows *WindowEnumerator
	alive   LiveCheck
}

// NewPlatform returns a Platform over gate. alive may be nil.
func NewPlatform(gate *Gate, alive LiveCheck) *Platform {
	return &Platform{gate: gate, alive: alive}
}

func (p *Platform) components() (*LockInspector, *WindowEnumerator) {
	p.once.Do(func() {
		provider := p.gate.Provider()
		cfg := p.gate.Config()
		p.locks = NewLockInspector(provider, cfg, p.alive)
		p.windows = NewWindowEnumerator(provider, cfg)
	})
	return p.locks, p.windows
}

// Gate returns the platform's capability gate.
func (p *Platform) Gate() *Gate { return p.gate }

// IsSupported reports whether lock and window queries are backed by a loaded
// backend.
func (p *Platform) IsSupported() bool { return p.gate.Supported() }

// ProcessesWithLockOn returns the live processes holding path open.
func (p *Platform) ProcessesWithLockOn(ctx context.Context, path string) ([]ProcessID, error) {
	locks, _ := p.components()
	return locks.FindLockHolders(ctx, path)
}

// WindowTitlesForPid returns the window titles of pid.
func (p *Platform) WindowTitlesForPid(ctx context.Context, pid ProcessID) ([]string, error) {
	_, windows := p.components()
	return windows.FindWindowTitles(ctx, pid)
}

var (
	defaultOnce     sync.Once
	defaultPlatform *Platform
)

// Init builds the process-wide Platform with cfg. Only the first call (or
// the first Default) decides the configuration; later calls return the
// existing Platform unchanged.
func Init(cfg Config) *Platform {
	defaultOnce.Do(func() {
		gate := NewGate(PlatformKey(runtime.GOOS, runtime.GOARCH), nativeLoaders(), WithConfig(cfg))
		defaultPlatform = NewPlatform(gate, nil)
	})
	return defaultPlatform
}

// Default returns the process-wide Platform for the running OS and
// architecture.
func Default() *Platform {
	return Init(DefaultConfig())
}

// SupportedKeys lists the platform keys this build has a backend for.
func SupportedKeys() []string {
	loaders := nativeLoaders()
	keys := make([]string, 0, len(loaders))
	for k := range loaders {
		keys = append(keys, k)
	}
	return keys
}

// IsSupported reports whether the current platform is supported.
func IsSupported() bool {
	return Default().IsSupported()
}

// ProcessesWithLockOn returns the processes holding a lock on path. It
// returns an empty result on unsupported platforms.
func ProcessesWithLockOn(ctx context.Context, path string) ([]ProcessID, error) {
	return Default().ProcessesWithLockOn(ctx, path)
}

// WindowTitlesForPid returns the window titles of pid. It may be empty if the
// process has no windows.
func WindowTitlesForPid(ctx context.Context, pid ProcessID) ([]string, error) {
	return Default().WindowTitlesForPid(ctx, pid)
}
