//go:build linux

package nativeplatform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
)

func nativeLoaders() map[string]Loader {
	return map[string]Loader{
		"linux-amd64": loadProcfsBackend,
		"linux-arm64": loadProcfsBackend,
		"linux-386":   loadProcfsBackend,
		"linux-arm":   loadProcfsBackend,
	}
}

// procfsBackend scans /proc/<pid>/fd of every visible process.
type procfsBackend struct {
	config Config
}

func loadProcfsBackend(cfg Config) (Backend, error) {
	if _, err := os.ReadDir("/proc/self/fd"); err != nil {
		return nil, errors.Wrap(err, "procfs is not available")
	}
	return &procfsBackend{config: cfg}, nil
}

func (b *procfsBackend) PidsHoldingFile(ctx context.Context, path string) ([]ProcessID, error) {
	target, err := resolveTarget(path)
	if err != nil {
		return nil, err
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}

	workerCount := b.config.workers(len(procs))
	jobs := make(chan *process.Process, min(max(b.config.ChannelBuffer, 1), max(len(procs), 1)))
	results := make(chan ProcessID, workerCount*2)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go b.scanWorker(ctx, jobs, results, target, &wg)
	}

	// Job dispatcher
	go func() {
		defer close(jobs)
		for _, p := range procs {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var pids []ProcessID
	for pid := range results {
		pids = append(pids, pid)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pids, nil
}

func (b *procfsBackend) scanWorker(ctx context.Context, jobs <-chan *process.Process, results chan<- ProcessID, target string, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case p, ok := <-jobs:
			if !ok {
				return
			}
			if b.holdsFile(ctx, p, target) {
				select {
				case results <- ProcessID(p.Pid):
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// holdsFile reports whether p has target open. Processes whose fd table
// cannot be read are treated as not holding it.
func (b *procfsBackend) holdsFile(ctx context.Context, p *process.Process, target string) bool {
	if b.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.ProcessTimeout)
		defer cancel()
	}

	files, err := p.OpenFilesWithContext(ctx)
	if err != nil {
		return false
	}
	for _, f := range files {
		if f.Path == target {
			return true
		}
	}
	return false
}

func (b *procfsBackend) WindowTitles(ctx context.Context, pid ProcessID) ([]string, error) {
	// No display server access from procfs.
	return nil, nil
}

func resolveTarget(path string) (string, error) {
	if path == "" || strings.ContainsRune(path, 0) {
		return "", errors.Errorf("invalid path %q", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "invalid path")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
