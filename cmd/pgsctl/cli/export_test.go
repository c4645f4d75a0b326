package cli

import (
	"io"
	"testing"
)

// NewForTests creates a new App reading from stdin and printing to stdout, which ignores the
// system configuration directory.
func NewForTests(t *testing.T, stdin io.Reader, stdout io.Writer, args ...string) *App {
	t.Helper()

	a := New(func(o *options) {
		o.stdin = stdin
		o.stdout = stdout
		o.configDir = t.TempDir()
	})
	a.SetArgs(args)
	return a
}
