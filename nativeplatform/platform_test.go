package nativeplatform

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformKey(t *testing.T) {
	assert.Equal(t, "windows-amd64", PlatformKey("windows", "amd64"))
	assert.Equal(t, "linux-arm64", PlatformKey("Linux", "ARM64"))
}

func TestGateUnknownKeyIsUnsupported(t *testing.T) {
	loader, calls := countingLoader(&fakeBackend{}, nil)
	g := NewGate("plan9-mips", map[string]Loader{"windows-amd64": loader}, WithLogger(discardLog))

	assert.Equal(t, StateUninitialized, g.State())
	assert.False(t, g.Supported())
	assert.False(t, g.Supported())
	assert.Equal(t, StateUnsupported, g.State())
	assert.Zero(t, calls.Load())

	_, ok := g.Provider().Backend()
	assert.False(t, ok)

	res := g.LoadResult()
	assert.Equal(t, "plan9-mips", res.Key)
	assert.False(t, res.OK)
	assert.NoError(t, res.Err)
}

func TestGateLoadsOnce(t *testing.T) {
	backend := &fakeBackend{}
	loader, calls := countingLoader(backend, nil)
	g := NewGate("windows-amd64", map[string]Loader{"windows-amd64": loader}, WithLogger(discardLog))

	for i := 0; i < 5; i++ {
		assert.True(t, g.Supported())
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateReady, g.State())

	b, ok := g.Provider().Backend()
	require.True(t, ok)
	assert.Same(t, backend, b)
	assert.True(t, g.LoadResult().OK)
}

func TestGateConcurrentFirstCallsLoadOnce(t *testing.T) {
	loader, calls := countingLoader(&fakeBackend{}, nil)
	g := NewGate("windows-arm64", map[string]Loader{"windows-arm64": loader}, WithLogger(discardLog))

	const callers = 64
	var wg sync.WaitGroup
	results := make([]bool, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = g.Supported()
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.True(t, r)
	}
}

func TestGateLoadFailureFailsOpen(t *testing.T) {
	loadErr := errors.New("artifact missing")
	loader, calls := countingLoader(nil, loadErr)

	var logged []string
	g := NewGate("windows-386", map[string]Loader{"windows-386": loader},
		WithLogger(func(action, subject string, err error) {
			logged = append(logged, action+" "+subject)
		}))

	assert.False(t, g.Supported())
	assert.False(t, g.Supported())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateUnsupported, g.State())

	res := g.LoadResult()
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, loadErr)
	assert.Equal(t, []string{"LOAD-FAIL windows-386"}, logged)
}

func TestGateLoaderPanicFailsOpen(t *testing.T) {
	g := NewGate("windows-amd64", map[string]Loader{
		"windows-amd64": func(Config) (Backend, error) { panic("link failure") },
	}, WithLogger(discardLog))

	assert.NotPanics(t, func() { assert.False(t, g.Supported()) })
	assert.ErrorContains(t, g.LoadResult().Err, "link failure")
}

func TestGateNilBackendIsFailure(t *testing.T) {
	g := NewGate("linux-amd64", map[string]Loader{
		"linux-amd64": func(Config) (Backend, error) { return nil, nil },
	}, WithLogger(discardLog))

	assert.False(t, g.Supported())
	assert.Error(t, g.LoadResult().Err)
}

func TestGatePassesConfigToLoader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkers = 7

	var got Config
	g := NewGate("linux-amd64", map[string]Loader{
		"linux-amd64": func(c Config) (Backend, error) {
			got = c
			return &fakeBackend{}, nil
		},
	}, WithConfig(cfg), WithLogger(discardLog))

	require.True(t, g.Supported())
	assert.Equal(t, 7, got.MaxWorkers)
	assert.Equal(t, cfg, g.Config())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unsupported", StateUnsupported.String())
	assert.Equal(t, "unknown", State(42).String())
}
