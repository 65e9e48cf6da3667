// Package guard switches the binaries into test mode when imported by a test.
package guard

import (
	"os"
	"sync"
)

// EnvVar is read by app.InTestMode.
const EnvVar = "CHARGELEDGER_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
