package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/labref-api/errors"
)

const (
	logFilePrefix         = "labref-"
	defaultMaxFileSize    = 100 << 20
	defaultRetentionWeeks = 4
	cleanupInterval       = 24 * time.Hour
)

// RotatingLogger writes to one log file per ISO week. A file that reaches
// the size limit continues in a numbered sibling (labref-2026-W42_01.log).
type RotatingLogger struct {
	dir       string
	retention time.Duration
	maxSize   int64
	now       func() time.Time

	mu     sync.Mutex
	file   *os.File
	week   string
	size   int64
	closed bool

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRotatingLogger returns a logger for dir. A retention of zero weeks keeps
// every file and a maxFileSize of zero disables size rotation.
func NewRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		dir:       dir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxSize:   maxFileSize,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Open creates the directory and the file of the current week, then starts
// the daily cleanup of expired files
func (rl *RotatingLogger) Open() error {
	if err := os.MkdirAll(rl.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create log directory %s", rl.dir)
	}

	rl.mu.Lock()
	err := rl.rotate(weekKey(rl.now()), 1)
	rl.mu.Unlock()
	if err != nil {
		return err
	}

	rl.started.Store(true)
	go rl.cleanupLoop()
	return nil
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func fileName(week string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s%s.log", logFilePrefix, week)
	}
	return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, seq)
}

// rotate switches to the first file of week that can take need more bytes.
// Caller holds mu.
func (rl *RotatingLogger) rotate(week string, need int64) error {
	if rl.file != nil {
		if err := rl.file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		}
		rl.file = nil
	}

	path := filepath.Join(rl.dir, rl.pick(week, need))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open log file %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "stat log file %s", path)
	}

	rl.file, rl.week, rl.size = f, week, info.Size()
	return nil
}

func (rl *RotatingLogger) pick(week string, need int64) string {
	for seq := 0; ; seq++ {
		name := fileName(week, seq)
		if rl.fits(name, need) {
			return name
		}
	}
}

// fits reports whether name is missing, empty or has room for need bytes
func (rl *RotatingLogger) fits(name string, need int64) bool {
	if rl.maxSize <= 0 {
		return true
	}
	info, err := os.Stat(filepath.Join(rl.dir, name))
	if err != nil {
		return true
	}
	return info.Size() == 0 || info.Size()+need <= rl.maxSize
}

// Write appends p to the current file, rotating first on a new week or when
// p would push the file past the size limit
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return 0, errors.New("log file is closed")
	}

	need := int64(len(p))
	week := weekKey(rl.now())
	overflow := rl.maxSize > 0 && rl.size > 0 && rl.size+need > rl.maxSize
	if rl.file == nil || week != rl.week || overflow {
		if err := rl.rotate(week, need); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// Cleanup removes log files untouched for longer than the retention period
// and returns how many were removed. The open file is never removed.
func (rl *RotatingLogger) Cleanup() (int, error) {
	if rl.retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read log directory %s", rl.dir)
	}

	rl.mu.Lock()
	var current string
	if rl.file != nil {
		current = filepath.Base(rl.file.Name())
	}
	rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.retention)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == current || !strings.HasPrefix(name, logFilePrefix) || filepath.Ext(name) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rl.dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

func (rl *RotatingLogger) cleanupLoop() {
	defer close(rl.done)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			// stderr, not slog: this writer sits under the global logger
			n, err := rl.Cleanup()
			if err != nil {
				fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "removed %d expired log files\n", n)
			}
		}
	}
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		close(rl.stop)
		if rl.started.Load() {
			<-rl.done
		}

		rl.mu.Lock()
		defer rl.mu.Unlock()
		rl.closed = true
		if rl.file != nil {
			err = rl.file.Close()
			rl.file = nil
		}
	})
	return err
}

// setupLogger builds the console + file logger. The rotating logger is nil
// when logDir is empty or unusable, and only the console is written.
func setupLogger(logDir string, consoleLevel slog.Level, retentionWeeks int, maxFileSize int64) (*slog.Logger, *RotatingLogger) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel})
	if logDir == "" {
		return slog.New(console), nil
	}

	rl := NewRotatingLogger(logDir, retentionWeeks, maxFileSize)
	if err := rl.Open(); err != nil {
		logger := slog.New(console)
		logger.Error("File logging disabled", "dir", logDir, "error", err)
		return logger, nil
	}

	// text on the console, JSON in the file
	file := slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return slog.New(fanout{console, file}), rl
}

// fanout sends each record to every handler that accepts its level
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
