package pgs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/strictpgs/internal/testutils"
)

// edit replaces old by new in one of the database files of a fixture.
type edit struct {
	file     string
	old, new string
}

// newPrefix copies the fixture into a temporary prefix and applies edits to it.
func newPrefix(t *testing.T, fixture string, edits ...edit) string {
	t.Helper()

	var src string
	if fixture != "" {
		src = filepath.Join("testdata", fixture)
	}
	prefix := testutils.PrefixFromFixture(t, src)

	for _, e := range edits {
		p := filepath.Join(prefix, "etc", e.file)
		content, err := os.ReadFile(p)
		if e.old != "" {
			require.NoError(t, err, "Setup: could not read %q", p)
			require.Contains(t, string(content), e.old, "Setup: %q should contain the text to replace", p)
		}
		updated := strings.Replace(string(content), e.old, e.new, 1)
		if e.old == "" {
			updated = e.new
		}
		err = os.WriteFile(p, []byte(updated), 0600)
		require.NoError(t, err, "Setup: could not write %q", p)
	}

	return prefix
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "Could not read %q", path)
	return string(content)
}

func etcPath(prefix, name string) string {
	return filepath.Join(prefix, "etc", name)
}
