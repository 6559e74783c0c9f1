package logging

import (
	"testing"

	"github.com/giygas/labref-api/config"
)

// ResetForTest installs a fresh global logger writing to dir and closes it
// when the test ends
func ResetForTest(t *testing.T, dir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithOptions(dir, env, logLevel, retentionWeeks, maxFileSize, false)
	t.Cleanup(func() {
		if err := Close(); err != nil {
			t.Logf("closing logger: %v", err)
		}
	})
}
