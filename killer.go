package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/can-acar/lockprobe/nativeplatform"
)

var criticalProcs = []string{
	// windows
	"system", "csrss.exe", "winlogon.exe", "services.exe",
	"lsass.exe", "svchost.exe", "explorer.exe", "dwm.exe",
	"smss.exe", "wininit.exe", "spoolsv.exe", "conhost.exe",
	// unix
	"init", "systemd", "launchd", "kthreadd", "sshd",
}

// Killer terminates lock holders, gracefully first.
type Killer struct {
	gracePeriod time.Duration
	critical    map[string]bool
	self        int32
	procName    func(*process.Process) (string, error)
}

func NewKiller(gracePeriod time.Duration) *Killer {
	k := &Killer{
		gracePeriod: gracePeriod,
		critical:    make(map[string]bool, len(criticalProcs)),
		self:        int32(os.Getpid()),
		procName:    (*process.Process).Name,
	}
	for _, name := range criticalProcs {
		k.critical[strings.ToLower(name)] = true
	}
	return k
}

func (k *Killer) isCriticalProcess(name string) bool {
	return k.critical[strings.ToLower(name)]
}

// Kill terminates pid and waits up to the grace period before force
// killing it. Critical system processes, processes whose name cannot be
// read and lockprobe itself are refused.
func (k *Killer) Kill(ctx context.Context, pid nativeplatform.ProcessID) error {
	if int32(pid) == k.self {
		return fmt.Errorf("lockprobe kendi process'ini sonlandıramaz (PID %d)", pid)
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("process bulunamadı (PID %d): %w", pid, err)
	}

	// Without a name the critical process guard cannot be applied.
	name, err := k.procName(proc)
	if err != nil {
		return fmt.Errorf("process adı okunamadı (PID %d): %w", pid, err)
	}
	if k.isCriticalProcess(name) {
		return fmt.Errorf("kritik sistem process'i sonlandırılamaz: %s (PID %d)", name, pid)
	}

	// Önce graceful shutdown dene
	if err := proc.Terminate(); err == nil {
		return k.waitForProcessExit(ctx, proc)
	}

	return proc.Kill()
}

func (k *Killer) waitForProcessExit(ctx context.Context, proc *process.Process) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(k.gracePeriod)

	for {
		select {
		case <-ticker.C:
			exists, _ := process.PidExistsWithContext(ctx, proc.Pid)
			if !exists {
				return nil
			}
		case <-deadline:
			// Force kill
			if err := proc.Kill(); err != nil {
				return fmt.Errorf("process sonlandırılamadı (PID %d): %w", proc.Pid, err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
