package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can-acar/lockprobe/nativeplatform"
)

func TestKillerRefusesSelf(t *testing.T) {
	k := NewKiller(time.Second)
	err := k.Kill(context.Background(), nativeplatform.ProcessID(os.Getpid()))
	assert.ErrorContains(t, err, "kendi process")
}

func TestKillerMissingProcess(t *testing.T) {
	k := NewKiller(time.Second)
	assert.Error(t, k.Kill(context.Background(), ghostPID))
}

func TestIsCriticalProcess(t *testing.T) {
	k := NewKiller(time.Second)
	assert.True(t, k.isCriticalProcess("CSRSS.EXE"))
	assert.True(t, k.isCriticalProcess("systemd"))
	assert.False(t, k.isCriticalProcess("java.exe"))
}

func TestKillerTerminatesChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleep, "60")
	require.NoError(t, cmd.Start())
	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()

	k := NewKiller(2 * time.Second)
	require.NoError(t, k.Kill(context.Background(), nativeplatform.ProcessID(cmd.Process.Pid)))

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("child still running")
	}
	exists, _ := process.PidExists(int32(cmd.Process.Pid))
	assert.False(t, exists)
}

func TestKillerRefusesUnreadableName(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command(sleep, "60")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	k := NewKiller(time.Second)
	k.procName = func(*process.Process) (string, error) {
		return "", errors.New("permission denied")
	}

	err = k.Kill(context.Background(), nativeplatform.ProcessID(cmd.Process.Pid))
	assert.ErrorContains(t, err, "process adı okunamadı")

	exists, _ := process.PidExists(int32(cmd.Process.Pid))
	assert.True(t, exists)
}
