package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("GATEHOUSE_TEST_MODE", "1")
		if os.Getenv("MASTER_PASSWORD_HASH") == "" {
			_ = os.Setenv("MASTER_PASSWORD_HASH", "$2a$04$invalidhashfortestmode000000000000000000000000000000")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
