package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/can-acar/lockprobe/internal/actionlog"
	"github.com/can-acar/lockprobe/nativeplatform"
)

const maxWorkers = 10

type processKiller interface {
	Kill(ctx context.Context, pid nativeplatform.ProcessID) error
}

// Remover deletes trees and explains (or breaks) the locks that get in the
// way.
type Remover struct {
	opts   Options
	locks  lockQuerier
	killer processKiller
	remove func(string) error

	outMu  sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func NewRemover(opts Options, locks lockQuerier, killer processKiller, stdout, stderr io.Writer) *Remover {
	return &Remover{
		opts:   opts,
		locks:  locks,
		killer: killer,
		remove: os.RemoveAll,
		stdout: stdout,
		stderr: stderr,
	}
}

func (r *Remover) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.stdout, format, args...)
}

func (r *Remover) errorf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.stderr, format, args...)
}

func (r *Remover) excluded(name string) bool {
	for _, pattern := range r.opts.Excludes {
		if match, _ := doublestar.Match(pattern, name); match {
			return true
		}
	}
	return false
}

// Rimraf removes path recursively, skipping excluded entries. Directories
// that still hold an excluded entry are kept.
func (r *Remover) Rimraf(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("yol çözümlenemedi: %w", err)
	}
	_, err = r.rimraf(ctx, absPath)
	return err
}

// rimraf reports whether anything under absPath was kept. A directory with
// a child that could not be removed returns an error.
func (r *Remover) rimraf(ctx context.Context, absPath string) (bool, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return false, fmt.Errorf("yol bulunamadı: %w", err)
	}

	if r.excluded(info.Name()) {
		if r.opts.Verbose {
			r.printf("Atlandı (exclude): %s\n", absPath)
		}
		actionlog.Log("EXCLUDE", absPath, nil)
		return true, nil
	}

	// Klasörse parallel processing
	if info.IsDir() {
		entries, err := os.ReadDir(absPath)
		if err != nil {
			return false, fmt.Errorf("dizin okunamadı: %w", err)
		}

		var kept atomic.Bool
		var failed atomic.Int32
		semaphore := make(chan struct{}, maxWorkers)
		var wg sync.WaitGroup

		for _, entry := range entries {
			wg.Add(1)
			go func(e os.DirEntry) {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				child := filepath.Join(absPath, e.Name())
				childKept, err := r.rimraf(ctx, child)
				if err != nil {
					// Hataları logla ama devam et
					r.errorf("Silinemedi: %s (%v)\n", child, err)
					actionlog.Log("ERROR", child, err)
					failed.Add(1)
				}
				if childKept {
					kept.Store(true)
				}
			}(entry)
		}
		wg.Wait()

		if n := failed.Load(); n > 0 {
			return true, fmt.Errorf("%s altında %d öğe silinemedi", absPath, n)
		}
		if kept.Load() {
			return true, nil
		}
	}

	if r.opts.DryRun {
		r.printf("[dry-run] Silinecek: %s\n", absPath)
		actionlog.Log("DRY-RUN", absPath, nil)
		return false, nil
	}

	if err := r.remove(absPath); err != nil {
		if err = r.handleLocked(ctx, absPath, err); err != nil {
			r.errorf("Silinemedi: %s (%v)\n", absPath, err)
			actionlog.Log("ERROR", absPath, err)
			return false, err
		}
	}

	if r.opts.Verbose {
		r.printf("Silindi: %s\n", absPath)
	}
	actionlog.Log("DELETE", absPath, nil)
	return false, nil
}

// handleLocked explains why absPath could not be removed and, with --force,
// kills the holders and retries. It returns the error left after that.
func (r *Remover) handleLocked(ctx context.Context, absPath string, removeErr error) error {
	if !r.locks.IsSupported() {
		if r.opts.Verbose {
			r.errorf("Kilit tespiti bu platformda desteklenmiyor: %s\n", absPath)
		}
		return removeErr
	}

	pids, err := r.locks.ProcessesWithLockOn(ctx, absPath)
	if err != nil {
		actionlog.Log("ERROR", absPath, err)
		return removeErr
	}
	if len(pids) == 0 {
		return removeErr
	}

	holders := describeHolders(ctx, r.locks, pids)
	r.errorf("Dosya kilitli: %s\n", absPath)
	for _, h := range holders {
		r.errorf("  %s\n", h)
		actionlog.Log("LOCKED", absPath+" <- "+h.String(), nil)
	}

	if !r.opts.Force {
		return removeErr
	}

	for _, h := range holders {
		if err := r.killer.Kill(ctx, h.PID); err != nil {
			r.errorf("Kill edilemedi: PID %d, %v\n", h.PID, err)
			actionlog.Log("KILL-FAIL", absPath, err)
			continue
		}
		r.printf("Process %d kill edildi (dosya kilidi): %s\n", h.PID, absPath)
		actionlog.Log("KILL", absPath, nil)
	}

	// Tekrar silmeyi dene
	return r.remove(absPath)
}

// Check reports the lock holders of every non-excluded file under path and
// returns how many files are locked.
func (r *Remover) Check(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("yol çözümlenemedi: %w", err)
	}
	if _, err := os.Lstat(absPath); err != nil {
		return 0, fmt.Errorf("yol bulunamadı: %w", err)
	}

	if !r.locks.IsSupported() {
		r.printf("Kilit tespiti bu platformda desteklenmiyor (%s)\n",
			nativeplatform.PlatformKey(runtime.GOOS, runtime.GOARCH))
		return 0, nil
	}

	locked := 0
	err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			r.errorf("Okunamadı: %s (%v)\n", p, err)
			return nil
		}
		if r.excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		pids, err := r.locks.ProcessesWithLockOn(ctx, p)
		if err != nil {
			r.errorf("Kilit sorgusu başarısız: %s (%v)\n", p, err)
			actionlog.Log("ERROR", p, err)
			return nil
		}
		if len(pids) == 0 {
			if r.opts.Verbose {
				r.printf("Kilitsiz: %s\n", p)
			}
			return nil
		}

		locked++
		r.printf("Kilitli: %s\n", p)
		for _, h := range describeHolders(ctx, r.locks, pids) {
			r.printf("  %s\n", h)
			actionlog.Log("LOCKED", p+" <- "+h.String(), nil)
		}
		return ctx.Err()
	})
	if err != nil {
		return locked, err
	}

	if locked == 0 {
		r.printf("Kilitli dosya bulunamadı.\n")
	}
	return locked, nil
}
