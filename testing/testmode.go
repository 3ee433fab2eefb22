// Package testing switches the process into test mode when blank-imported by a
// test package, so binaries and config loaders skip runtime side effects.
package testing

import (
	"os"
	"sync"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var once sync.Once

// Enable sets the test mode flags. It runs once per process.
func Enable() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("APP_ENV") == "" {
			_ = os.Setenv("APP_ENV", "test")
		}
		if os.Getenv("LOG_LEVEL") == "" {
			_ = os.Setenv("LOG_LEVEL", "warn")
		}
	})
}

func init() {
	Enable()
}
