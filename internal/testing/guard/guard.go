// Package guard switches the process into test mode when imported, so that
// command entrypoints return before touching Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "INVOICEDESK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
