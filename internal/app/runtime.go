package app

import (
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv disables process side effects (listeners, queue consumers) when set.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode atomic.Pointer[bool]

func readTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}

// InTestMode reports whether ledger binaries should start without side effects.
// The environment is read on first use and cached.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	on := readTestMode()
	testMode.CompareAndSwap(nil, &on)
	return *testMode.Load()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	on := readTestMode()
	testMode.Store(&on)
}

// SkipStartup logs and reports true when component must not start because the
// process runs under tests.
func SkipStartup(component string) bool {
	if !InTestMode() {
		return false
	}
	slog.Default().Info("test mode detected, skipping startup", slog.String("component", component))
	return true
}
