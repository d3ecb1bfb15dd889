package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "AGENCY_TEST_MODE"

// InTestMode reports whether AGENCY_TEST_MODE asks the binaries to exit before
// touching Postgres or Redis. The variable is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	return parseTestMode(os.Getenv(testModeEnv))
})

func parseTestMode(v string) bool {
	on, err := strconv.ParseBool(v)
	return err == nil && on
}
