package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv is set by the blank-imported testing package so that the
// server and worker binaries return before dialling Redis or Postgres.
const testModeEnv = "BACKOFFICE_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the process runs under go test. The environment
// is read on first use.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment; tests that toggle the flag call it.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
