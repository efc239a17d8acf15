package nativeplatform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformUnsupportedReturnsEmpty(t *testing.T) {
	p := NewPlatform(NewGate("plan9-386", nativeLoaders(), WithLogger(discardLog)), nil)

	assert.False(t, p.IsSupported())

	pids, err := p.ProcessesWithLockOn(context.Background(), "/tmp/anything")
	assert.NoError(t, err)
	assert.Empty(t, pids)

	titles, err := p.WindowTitlesForPid(context.Background(), 1)
	assert.NoError(t, err)
	assert.Empty(t, titles)
}

func TestPlatformWithFakeBackend(t *testing.T) {
	backend := &fakeBackend{
		pids:   []ProcessID{5, 6},
		titles: map[ProcessID][]string{5: {"Editor"}},
	}
	loader, calls := countingLoader(backend, nil)
	p := NewPlatform(NewGate("fake-arch", map[string]Loader{"fake-arch": loader}, WithLogger(discardLog)), aliveSet(5))

	require.True(t, p.IsSupported())

	pids, err := p.ProcessesWithLockOn(context.Background(), "/tmp/file")
	require.NoError(t, err)
	assert.Equal(t, []ProcessID{5}, pids)

	titles, err := p.WindowTitlesForPid(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Editor"}, titles)

	assert.Equal(t, int32(1), calls.Load())
}

func TestDefaultIsStable(t *testing.T) {
	first := IsSupported()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, IsSupported())
	}
	assert.Same(t, Default(), Default())
	assert.Equal(t, PlatformKey(runtime.GOOS, runtime.GOARCH), Default().Gate().Key())

	_, listed := nativeLoaders()[Default().Gate().Key()]
	if !listed {
		assert.False(t, first)
	}
}

func TestSupportedKeysMatchesLoaders(t *testing.T) {
	assert.Len(t, SupportedKeys(), len(nativeLoaders()))
}
