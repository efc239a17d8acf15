// Package nativeplatform answers two OS introspection questions: which
// processes hold a file open, and which window titles a process owns.
//
// Support is decided once per process by a capability gate. On platforms
// without a backend every query returns an empty result and no error; use
// IsSupported to tell "unsupported" apart from "nothing found".
package nativeplatform

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/can-acar/lockprobe/internal/actionlog"
)

// State is the capability gate lifecycle. StateReady and StateUnsupported
// are terminal.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateUnsupported
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// PlatformKey builds the "<os>-<arch>" key used to look up a Loader.
func PlatformKey(goos, goarch string) string {
	return strings.ToLower(goos) + "-" + strings.ToLower(goarch)
}

// LoadResult describes the outcome of the one-time backend load.
type LoadResult struct {
	Key      string
	OK       bool
	Err      error // nil when OK or when the key has no loader
	Duration time.Duration
}

// Provider hands the loaded backend to the query components.
type Provider struct {
	backend Backend
}

// Unavailable is the provider of an unsupported platform.
var Unavailable = Provider{}

// Loaded wraps a ready backend.
func Loaded(b Backend) Provider {
	return Provider{backend: b}
}

// Backend returns the loaded backend and whether there is one.
func (p Provider) Backend() (Backend, bool) {
	return p.backend, p.backend != nil
}

// Gate lazily loads the backend for its platform key, at most once.
type Gate struct {
	key     string
	loaders map[string]Loader
	cfg     Config
	logf    func(action, subject string, err error)

	mu      sync.Mutex
	state   atomic.Int32
	backend Backend
	result  LoadResult
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithConfig sets the Config passed to the loader.
func WithConfig(cfg Config) GateOption {
	return func(g *Gate) { g.cfg = cfg }
}

// WithLogger replaces the action log used to report the load outcome.
func WithLogger(logf func(action, subject string, err error)) GateOption {
	return func(g *Gate) { g.logf = logf }
}

// NewGate returns an uninitialized gate for key. loaders is the table of
// supported platform keys; it is not modified.
func NewGate(key string, loaders map[string]Loader, opts ...GateOption) *Gate {
	g := &Gate{
		key:     key,
		loaders: loaders,
		cfg:     DefaultConfig(),
		logf:    actionlog.Log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key returns the platform key the gate was built for.
func (g *Gate) Key() string { return g.key }

// Config returns the gate's configuration.
func (g *Gate) Config() Config { return g.cfg }

// State returns the current state without triggering initialization.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Supported reports whether the backend is loaded, initializing the gate on
// first use.
func (g *Gate) Supported() bool {
	return g.init() == StateReady
}

// Provider returns the backend provider, initializing the gate on first use.
func (g *Gate) Provider() Provider {
	if g.init() != StateReady {
		return Unavailable
	}
	return Loaded(g.backend)
}

// LoadResult returns the outcome of the load, initializing the gate on first
// use.
func (g *Gate) LoadResult() LoadResult {
	g.init()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

func (g *Gate) init() State {
	if s := State(g.state.Load()); s != StateUninitialized {
		return s
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if s := State(g.state.Load()); s != StateUninitialized {
		return s
	}

	loader, ok := g.loaders[g.key]
	if !ok {
		g.result = LoadResult{Key: g.key}
		g.state.Store(int32(StateUnsupported))
		return StateUnsupported
	}

	start := time.Now()
	backend, err := safeLoad(loader, g.cfg)
	g.result = LoadResult{Key: g.key, OK: err == nil, Err: err, Duration: time.Since(start)}

	if err != nil {
		g.logf("LOAD-FAIL", g.key, err)
		g.state.Store(int32(StateUnsupported))
		return StateUnsupported
	}

	g.logf("LOAD", g.key, nil)
	// backend is written before the state flips, readers go through the atomic.
	g.backend = backend
	g.state.Store(int32(StateReady))
	return StateReady
}

func safeLoad(loader Loader, cfg Config) (b Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("backend loader panicked: %v", r)
		}
	}()

	b, err = loader(cfg)
	if err == nil && b == nil {
		err = fmt.Errorf("backend loader returned no backend")
	}
	return b, err
}
