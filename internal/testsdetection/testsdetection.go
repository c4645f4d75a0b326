// Package testsdetection guards test-only overrides from being used in production code.
package testsdetection

import (
	"testing"
)

// integrationtests is switched on by the integration tests build of pgsctl.
var integrationtests = false

// MustBeTesting panics if we are not running under tests or integration tests.
func MustBeTesting() {
	if testing.Testing() || integrationtests {
		return
	}
	panic("This can only be called in tests")
}
