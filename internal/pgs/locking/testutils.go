package pgslocking

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/strictpgs/internal/testsdetection"
	"golang.org/x/sys/unix"
)

// Z_ForTests_OverrideTimings changes how long and how often we try to get the
// lock. The previous values are restored once the test is completed.
// Tests using it cannot be run in parallel.
//
// nolint:revive,nolintlint // We want to use underscores in the function name here.
func Z_ForTests_OverrideTimings(t *testing.T, wait, poll time.Duration) {
	t.Helper()

	testsdetection.MustBeTesting()

	oldWait, oldPoll := maxWait, pollInterval
	maxWait, pollInterval = wait, poll
	t.Cleanup(func() {
		maxWait, pollInterval = oldWait, oldPoll
	})
}

// Z_ForTests_LockExternally simulates another process holding the lock on
// lockPath, as shadow-utils would do. The lock is released when the returned
// function is called or, at last, when the test is completed.
//
// nolint:revive,nolintlint // We want to use underscores in the function name here.
func Z_ForTests_LockExternally(t *testing.T, lockPath string) (release func()) {
	t.Helper()

	testsdetection.MustBeTesting()

	err := os.MkdirAll(filepath.Dir(lockPath), 0700)
	require.NoError(t, err, "Setup: could not create lock directory")

	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE, 0600)
	require.NoError(t, err, "Setup: could not open lock file")

	err = unix.FcntlFlock(f.Fd(), unix.F_OFD_SETLK, &unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart})
	require.NoError(t, err, "Setup: could not take external lock")

	released := false
	release = func() {
		if released {
			return
		}
		released = true
		require.NoError(t, f.Close(), "Teardown: could not release external lock")
	}
	t.Cleanup(release)

	return release
}
