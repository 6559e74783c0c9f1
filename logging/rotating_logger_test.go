package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/labref-api/config"
)

var monday = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

func openAt(t *testing.T, dir string, at time.Time, retentionWeeks int, maxSize int64) *RotatingLogger {
	t.Helper()
	rl := NewRotatingLogger(dir, retentionWeeks, maxSize)
	rl.now = func() time.Time { return at }
	require.NoError(t, rl.Open())
	t.Cleanup(func() { _ = rl.Close() })
	return rl
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	require.NoError(t, err)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	return names
}

func TestWeekKey(t *testing.T) {
	assert.Equal(t, "2026-W43", weekKey(monday))
	assert.Equal(t, "2024-W01", weekKey(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	// ISO years start on the Monday of the week holding January 4th
	assert.Equal(t, "2025-W01", weekKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}

func TestRotatingLoggerWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	rl := openAt(t, dir, monday, 4, 0)

	_, err := rl.Write([]byte("hemoglobin resolved\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "labref-2026-W43.log"))
	require.NoError(t, err)
	assert.Equal(t, "hemoglobin resolved\n", string(content))
}

func TestRotatingLoggerWeeklyRotation(t *testing.T) {
	dir := t.TempDir()
	now := monday
	rl := openAt(t, dir, now, 4, 0)
	rl.now = func() time.Time { return now }

	_, err := rl.Write([]byte("week 43\n"))
	require.NoError(t, err)

	now = now.AddDate(0, 0, 7)
	_, err = rl.Write([]byte("week 44\n"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"labref-2026-W43.log", "labref-2026-W44.log"}, logFiles(t, dir))
	content, err := os.ReadFile(filepath.Join(dir, "labref-2026-W44.log"))
	require.NoError(t, err)
	assert.Equal(t, "week 44\n", string(content))
}

func TestRotatingLoggerSizeRotation(t *testing.T) {
	dir := t.TempDir()
	rl := openAt(t, dir, monday, 4, 50)

	chunk := []byte(strings.Repeat("x", 29) + "\n")
	for range 2 {
		_, err := rl.Write(chunk)
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"labref-2026-W43.log", "labref-2026-W43_01.log"}, logFiles(t, dir))

	// an oversized record lands alone in a fresh file
	_, err := rl.Write(bytes.Repeat([]byte("y"), 100))
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, "labref-2026-W43_02.log"))
	require.NoError(t, err)
	assert.EqualValues(t, 100, info.Size())
}

func TestRotatingLoggerReopen(t *testing.T) {
	t.Run("file at limit continues in a numbered file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "labref-2026-W43.log"), bytes.Repeat([]byte("a"), 64), 0o644))

		rl := openAt(t, dir, monday, 4, 64)
		assert.Equal(t, "labref-2026-W43_01.log", filepath.Base(rl.file.Name()))
		assert.Zero(t, rl.size)
	})

	t.Run("file below limit is appended", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "labref-2026-W43.log"), []byte("earlier\n"), 0o644))

		rl := openAt(t, dir, monday, 4, 64)
		_, err := rl.Write([]byte("later\n"))
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(dir, "labref-2026-W43.log"))
		require.NoError(t, err)
		assert.Equal(t, "earlier\nlater\n", string(content))
	})
}

func TestRotatingLoggerCleanup(t *testing.T) {
	dir := t.TempDir()
	old := monday.AddDate(0, 0, -21)
	for _, name := range []string{"labref-2026-W40.log", "labref-2026-W40_01.log", "other.log", "labref-notes.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))
		require.NoError(t, os.Chtimes(path, old, old))
	}

	rl := openAt(t, dir, monday, 1, 0)
	current := filepath.Join(dir, "labref-2026-W43.log")
	require.NoError(t, os.Chtimes(current, old, old))

	removed, err := rl.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.FileExists(t, current)
	assert.FileExists(t, filepath.Join(dir, "other.log"))
	assert.FileExists(t, filepath.Join(dir, "labref-notes.txt"))

	t.Run("zero retention keeps everything", func(t *testing.T) {
		keep := openAt(t, dir, monday, 0, 0)
		removed, err := keep.Cleanup()
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestRotatingLoggerClose(t *testing.T) {
	rl := openAt(t, t.TempDir(), monday, 4, 0)

	require.NoError(t, rl.Close())
	require.NoError(t, rl.Close())

	_, err := rl.Write([]byte("late\n"))
	assert.Error(t, err)

	// never opened
	assert.NoError(t, NewRotatingLogger(t.TempDir(), 1, 0).Close())
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	rl := openAt(t, dir, monday, 4, 4096)

	const writers, lines = 8, 200
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range lines {
				_, _ = rl.Write([]byte("glucose classified above\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rl.Close())

	total := 0
	for _, name := range logFiles(t, dir) {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(content), 4096)
		total += strings.Count(string(content), "glucose classified above\n")
	}
	assert.Equal(t, writers*lines, total)
}

func TestSetupLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		logger, rl := setupLogger("", slog.LevelInfo, 1, 0)
		assert.NotNil(t, logger)
		assert.Nil(t, rl)
	})

	t.Run("unusable directory falls back to console", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		logger, rl := setupLogger(filepath.Join(blocker, "logs"), slog.LevelError, 1, 0)
		assert.NotNil(t, logger)
		assert.Nil(t, rl)
	})

	t.Run("file receives debug records as JSON", func(t *testing.T) {
		dir := t.TempDir()
		logger, rl := setupLogger(dir, slog.LevelError, 1, 0)
		require.NotNil(t, rl)

		logger.Debug("reference resolved", "test", "hemoglobin")
		require.NoError(t, rl.Close())

		files := logFiles(t, dir)
		require.Len(t, files, 1)
		content, err := os.ReadFile(filepath.Join(dir, files[0]))
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"reference resolved"`)
		assert.Contains(t, string(content), `"test":"hemoglobin"`)
	})
}

func TestFanout(t *testing.T) {
	var quiet, loud bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	ctx := context.Background()

	assert.True(t, h.Enabled(ctx, slog.LevelDebug))
	assert.False(t, fanout{}.Enabled(ctx, slog.LevelError))

	logger := slog.New(h).With("biomaterial", "venous_blood").WithGroup("patient")
	logger.Info("classified", "sex", "male")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "biomaterial=venous_blood")
	assert.Contains(t, loud.String(), "patient.sex=male")
}

func TestGlobalLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	ResetForTest(t, dir, config.EnvTest, "", 1, 0)

	Info("reference set loaded", "documents", 6)
	Debug("debug goes to the file only")
	require.NoError(t, Close())
	require.NoError(t, Close())

	files := logFiles(t, dir)
	require.Len(t, files, 1)
	content, err := os.ReadFile(filepath.Join(dir, files[0]))
	require.NoError(t, err)
	assert.Contains(t, string(content), "reference set loaded")
	assert.Contains(t, string(content), "debug goes to the file only")
	assert.NotNil(t, Logger())
}
