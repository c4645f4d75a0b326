// Package golden compares test output with reference files stored under testdata/golden.
package golden

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

// UpdateGoldenFilesEnv is the environment variable which makes the tests rewrite their golden files
// with the current output instead of comparing against them.
const UpdateGoldenFilesEnv = `TESTS_UPDATE_GOLDEN`

var update = os.Getenv(UpdateGoldenFilesEnv) != ""

// CheckOrUpdate compares got with the golden file of the running test, or rewrites the golden
// file when updates are enabled.
func CheckOrUpdate(t *testing.T, got string) {
	t.Helper()

	p := Path(t)
	if update {
		t.Logf("updating golden file %s", p)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750), "Cannot create golden file directory")
		require.NoError(t, os.WriteFile(p, []byte(got), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(p)
	require.NoError(t, err, "Cannot read golden file %s", p)

	if got == string(want) {
		return
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(got),
		FromFile: "golden",
		ToFile:   "actual",
		Context:  3,
	})
	require.NoError(t, err, "Cannot compute diff with golden file")
	require.Failf(t, "Output does not match golden file", "%s\n%s", p, diff)
}

// Path returns the golden file of the running test: one file per subtest, in a directory named after
// the top level test.
func Path(t *testing.T) string {
	t.Helper()

	for _, part := range strings.Split(t.Name(), "/") {
		require.Regexp(t, `^[\w\-.]+$`, part, "Test name %q cannot be used as a golden file name", part)
	}

	cwd, err := os.Getwd()
	require.NoError(t, err, "Cannot get current working directory")
	return filepath.Join(cwd, "testdata", "golden", t.Name())
}
