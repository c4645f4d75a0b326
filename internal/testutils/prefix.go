// Package testutils provides helpers shared by the package tests.
package testutils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/copy"
	"github.com/stretchr/testify/require"
)

// DatabaseFiles are the account database files, in the order DumpDatabase prints them.
var DatabaseFiles = []string{"passwd", "group", "shadow", "gshadow"}

// PrefixFromFixture copies the fixture directory into a temporary directory and returns it
// as an account database prefix. An empty fixture returns a prefix with an empty etc directory.
func PrefixFromFixture(t *testing.T, fixture string) string {
	t.Helper()

	prefix := t.TempDir()
	if fixture == "" {
		err := os.MkdirAll(filepath.Join(prefix, "etc"), 0700)
		require.NoError(t, err, "Setup: could not create etc directory")
		return prefix
	}

	err := copy.Copy(fixture, prefix, copy.Options{Sync: true})
	require.NoError(t, err, "Setup: could not copy fixture %q", fixture)

	// git does not track file modes beyond the executable bit.
	for name, mode := range map[string]fs.FileMode{"shadow": 0600, "gshadow": 0600} {
		p := filepath.Join(prefix, "etc", name)
		if err := os.Chmod(p, mode); err != nil && !errors.Is(err, fs.ErrNotExist) {
			require.NoError(t, err, "Setup: could not set mode of %q", p)
		}
	}

	return prefix
}

// DumpDatabase returns the content of the database files under prefix in a single string,
// each file preceded by a marker line with its name. Missing files are marked as such.
func DumpDatabase(t *testing.T, prefix string) string {
	t.Helper()

	var sb strings.Builder
	for _, name := range DatabaseFiles {
		fmt.Fprintf(&sb, "==> %s <==\n", name)
		content, err := os.ReadFile(filepath.Join(prefix, "etc", name))
		if errors.Is(err, fs.ErrNotExist) {
			sb.WriteString("(missing)\n")
			continue
		}
		require.NoError(t, err, "Could not read %s", name)
		sb.Write(content)
	}
	return sb.String()
}
