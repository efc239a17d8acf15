package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/process"

	"github.com/can-acar/lockprobe/nativeplatform"
)

// lockQuerier is the part of nativeplatform.Platform the CLI uses.
type lockQuerier interface {
	IsSupported() bool
	ProcessesWithLockOn(ctx context.Context, path string) ([]nativeplatform.ProcessID, error)
	WindowTitlesForPid(ctx context.Context, pid nativeplatform.ProcessID) ([]string, error)
}

// HolderInfo describes one process holding a file.
type HolderInfo struct {
	PID    nativeplatform.ProcessID
	Name   string
	Exe    string
	Titles []string
}

func (h HolderInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PID %d", h.PID)
	if h.Name != "" {
		fmt.Fprintf(&b, " (%s)", h.Name)
	}
	if h.Exe != "" {
		fmt.Fprintf(&b, " %s", h.Exe)
	}
	for _, title := range h.Titles {
		fmt.Fprintf(&b, " %q", title)
	}
	return b.String()
}

// describeHolders adds name, executable and window titles to pids. Details
// that cannot be read are left empty.
func describeHolders(ctx context.Context, q lockQuerier, pids []nativeplatform.ProcessID) []HolderInfo {
	infos := make([]HolderInfo, 0, len(pids))
	for _, pid := range pids {
		info := HolderInfo{PID: pid}

		if proc, err := process.NewProcess(int32(pid)); err == nil {
			info.Name, _ = proc.Name()
			info.Exe, _ = proc.Exe()
		}
		if titles, err := q.WindowTitlesForPid(ctx, pid); err == nil {
			info.Titles = titles
		}

		infos = append(infos, info)
	}
	return infos
}
