// Package actionlog writes a buffered, append-only log of actions taken by
// lockprobe (library loads, lock lookups, deletes, kills).
package actionlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	chanSize      = 1000
	bufferSize    = 100
	flushAt       = 50
	flushInterval = 5 * time.Second
)

type entry struct {
	action    string
	subject   string
	err       error
	timestamp time.Time
}

// Logger batches entries from a channel and flushes them to a writer.
type Logger struct {
	out    io.Closer
	writer *bufio.Writer

	mu     sync.Mutex
	ch     chan entry
	closed bool
	done   chan struct{}

	buffer    []entry
	lastFlush time.Time
}

// New starts a Logger writing to w. If w is also an io.Closer it is closed
// by Stop.
func New(w io.Writer) *Logger {
	l := &Logger{
		writer:    bufio.NewWriterSize(w, 8192), // 8KB buffer
		ch:        make(chan entry, chanSize),
		done:      make(chan struct{}),
		buffer:    make([]entry, 0, bufferSize),
		lastFlush: time.Now(),
	}
	if c, ok := w.(io.Closer); ok {
		l.out = c
	}

	go l.process()
	return l
}

// Open appends to filename, creating it when needed.
func Open(filename string) (*Logger, error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

// Log queues an entry. Entries are dropped when the queue is full or the
// logger has been stopped.
func (l *Logger) Log(action, subject string, err error) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	select {
	case l.ch <- entry{action: action, subject: subject, err: err, timestamp: time.Now()}:
	default:
		// Channel full, drop log entry
	}
}

// Stop drains the queue, flushes and closes the underlying writer.
func (l *Logger) Stop() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()

	<-l.done
	if err := l.writer.Flush(); err != nil {
		return err
	}
	if l.out != nil {
		return l.out.Close()
	}
	return nil
}

func (l *Logger) process() {
	defer close(l.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				// Channel closed, flush remaining entries
				l.flush()
				return
			}

			l.buffer = append(l.buffer, e)
			if len(l.buffer) >= flushAt {
				l.flush()
			}

		case <-ticker.C:
			if time.Since(l.lastFlush) > flushInterval && len(l.buffer) > 0 {
				l.flush()
			}
		}
	}
}

func (l *Logger) flush() {
	if len(l.buffer) == 0 {
		return
	}

	for _, e := range l.buffer {
		ts := e.timestamp.Format("2006-01-02 15:04:05.000")
		if e.err != nil {
			fmt.Fprintf(l.writer, "%s [%s] %s HATA: %v\n", ts, e.action, e.subject, e.err)
		} else {
			fmt.Fprintf(l.writer, "%s [%s] %s\n", ts, e.action, e.subject)
		}
	}

	l.writer.Flush()
	l.buffer = l.buffer[:0]
	l.lastFlush = time.Now()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Start opens filename as the process-wide action log. A failure is
// reported on stderr and leaves logging disabled.
func Start(filename string) {
	l, err := Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Log dosyası açılamadı: %v\n", err)
		return
	}

	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()

	if prev != nil {
		prev.Stop()
	}
}

// Stop flushes and closes the process-wide action log.
func Stop() {
	defaultMu.Lock()
	l := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()

	if l != nil {
		l.Stop()
	}
}

// Log records an action on the process-wide log. It is a no-op until Start
// has been called.
func Log(action, subject string, err error) {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()

	l.Log(action, subject, err)
}
