package pgs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/internal/testutils"
	"github.com/ubuntu/strictpgs/internal/testutils/golden"
)

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "categorized")
	before := testutils.DumpDatabase(t, prefix)

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	snapshot := s.Snapshot()
	require.NoError(t, s.Save(), "Save should not return an error")

	require.Equal(t, before, testutils.DumpDatabase(t, prefix), "Saving a canonical database should not change it")
	for _, name := range []string{"passwd", "group", "shadow", "gshadow"} {
		require.Equal(t, readFile(t, etcPath(prefix, name)), readFile(t, etcPath(prefix, name+"-")), "Backup of %s should have the previous content", name)
		require.NoFileExists(t, etcPath(prefix, name+"+"), "Temporary %s file should not be left behind", name)
	}

	s, err = pgs.Open(prefix, true)
	require.NoError(t, err, "Reopening should not return an error")
	require.Equal(t, snapshot, s.Snapshot(), "Reopened store should have the same content")
	require.NoError(t, s.Verify(), "Reopened store should pass verification")
}

func TestSaveMigratesLegacyLayout(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "legacy")
	legacyPasswd := readFile(t, etcPath(prefix, "passwd"))

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	require.NoError(t, s.Save(), "Save should not return an error")

	for _, name := range []string{"passwd", "group", "shadow", "gshadow"} {
		want := readFile(t, filepath.Join("testdata", "categorized", "etc", name))
		require.Equal(t, want, readFile(t, etcPath(prefix, name)), "%s should be migrated to the categorized layout", name)
	}
	require.Equal(t, legacyPasswd, readFile(t, etcPath(prefix, "passwd-")), "Backup should have the legacy content")
	require.NoFileExists(t, etcPath(prefix, "gshadow-"), "No backup is made of a missing file")

	fi, err := os.Stat(etcPath(prefix, "gshadow"))
	require.NoError(t, err, "gshadow should be created")
	require.Equal(t, os.FileMode(0600), fi.Mode().Perm(), "New gshadow should not be world readable")

	s, err = pgs.Open(prefix, true)
	require.NoError(t, err, "Reopening should not return an error")
	require.NoError(t, s.Verify(), "Migrated database should pass verification")
}

func TestAddNormalUserThenSave(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "system-only")

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	require.NoError(t, s.AddNormalUser("userc", "$6$saltC$hashC"), "AddNormalUser should not return an error")
	require.NoError(t, s.Save(), "Save should not return an error")

	golden.CheckOrUpdate(t, testutils.DumpDatabase(t, prefix))

	s, err = pgs.Open(prefix, true)
	require.NoError(t, err, "Reopening should not return an error")
	require.Equal(t, []string{"userc"}, s.NormalUsers(), "Normal users should only have the new user")
	require.Equal(t, []string{"userc"}, s.PerUserGroups(), "Per-user groups should only have the new group")
	require.NoError(t, s.Verify(), "Saved database should pass verification")
}

func TestSaveRepairsRecoverableViolations(t *testing.T) {
	t.Parallel()

	for name, tc := range recoverableViolations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			prefix := newPrefix(t, tc.fixture, tc.edits...)

			s, err := pgs.Open(prefix, false)
			require.NoError(t, err, "Open should not return an error")
			require.ErrorIs(t, s.Verify(), pgs.ErrFormat, "Verify should fail before saving")
			require.NoError(t, s.Save(), "Save should repair the database")

			s, err = pgs.Open(prefix, true)
			require.NoError(t, err, "Reopening should not return an error")
			require.NoError(t, s.Verify(), "Saved database should pass verification")
			require.Empty(t, readFile(t, etcPath(prefix, "gshadow")), "gshadow should be empty")

			snapshot := s.Snapshot()
			require.Equal(t, []string{"usera", "userb"}, snapshot.NormalUsers, "Normal users should be sorted by UID")
			require.Equal(t, snapshot.NormalUsers, snapshot.PerUserGroups, "Per-user groups should follow normal users")
			require.Equal(t, snapshot.SoftwareUsers, snapshot.SoftwareGroups, "Software groups should follow software users")
			require.NotContains(t, snapshot.SecondaryGroups["usera"], "bin", "Members of deprecated groups should be removed")
		})
	}
}

func TestSaveRefusesUnrepairableDatabase(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "categorized",
		edit{file: "group", old: "messagebus:x:81:\n", new: "messagebus:x:81:\npolkitd:x:27:\n"},
		edit{file: "group", old: "bin:x:1:", new: "bin:x:1:usera"},
	)
	before := testutils.DumpDatabase(t, prefix)

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	snapshot := s.Snapshot()

	require.ErrorIs(t, s.Save(), pgs.ErrFormat, "Save should fail when verification still fails")
	require.Equal(t, before, testutils.DumpDatabase(t, prefix), "Nothing should be written")
	require.NoFileExists(t, etcPath(prefix, "passwd-"), "No backup should be made")

	require.Equal(t, snapshot, s.Snapshot(), "Failed save should not reorder the store")
	g, _, err := s.Group("bin")
	require.NoError(t, err, "Group should not return an error")
	require.Equal(t, []string{"usera"}, g.Users, "Failed save should not drop members of deprecated groups")

	require.NoError(t, s.Discard(), "Store should still be open after a failed save")
}

func TestSaveWritesNothingWhenStagingFails(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		blockedFile string
	}{
		"When_the_first_file_cannot_be_staged": {blockedFile: "passwd"},
		"When_a_middle_file_cannot_be_staged":  {blockedFile: "group"},
		"When_the_last_file_cannot_be_staged":  {blockedFile: "gshadow"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			prefix := newPrefix(t, "legacy")
			// A non empty directory in place of the temporary file cannot be opened for writing.
			blocker := etcPath(prefix, tc.blockedFile+"+")
			require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0700), "Setup: could not create blocking directory")
			before := make(map[string]string)
			for _, name := range []string{"passwd", "group", "shadow"} {
				before[name] = readFile(t, etcPath(prefix, name))
			}

			s, err := pgs.Open(prefix, false)
			require.NoError(t, err, "Open should not return an error")
			require.NoError(t, s.AddNormalUser("userc", "$6$saltC$hashC"), "AddNormalUser should not return an error")

			require.Error(t, s.Save(), "Save should fail when a file cannot be staged")

			for name, want := range before {
				require.Equal(t, want, readFile(t, etcPath(prefix, name)), "%s should not be replaced", name)
				if name+"+" != filepath.Base(blocker) {
					require.NoFileExists(t, etcPath(prefix, name+"+"), "Temporary %s file should be removed", name)
				}
			}
			require.NoFileExists(t, etcPath(prefix, "gshadow"), "gshadow should not be created")

			_, err = pgs.Open(prefix, true)
			require.NoError(t, err, "Database should still be readable after a failed save")
		})
	}
}

func TestSaveReadOnly(t *testing.T) {
	t.Parallel()

	s, err := pgs.Open(newPrefix(t, "categorized"), true)
	require.NoError(t, err, "Open should not return an error")

	require.ErrorIs(t, s.Save(), pgs.ErrReadOnly, "Save should fail on a read-only store")
	require.NoError(t, s.Discard(), "Discard should not return an error")
}

func TestSaveKeepsFileModes(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "categorized")
	err := os.Chmod(etcPath(prefix, "shadow"), 0640)
	require.NoError(t, err, "Setup: Chmod should not return an error")
	err = os.Chmod(etcPath(prefix, "passwd"), 0644)
	require.NoError(t, err, "Setup: Chmod should not return an error")

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	require.NoError(t, s.AddNormalUser("userc", "$6$saltC$hashC"), "AddNormalUser should not return an error")
	require.NoError(t, s.Save(), "Save should not return an error")

	for name, want := range map[string]os.FileMode{"passwd": 0644, "shadow": 0640, "shadow-": 0640, "gshadow": 0600} {
		fi, err := os.Stat(etcPath(prefix, name))
		require.NoError(t, err, "Stat should not return an error")
		require.Equal(t, want, fi.Mode().Perm(), "Mode of %s should be kept", name)
	}
}

func TestSaveFollowsSymlinks(t *testing.T) {
	t.Parallel()

	prefix := newPrefix(t, "legacy")
	target := etcPath(prefix, "passwd.real")
	err := os.Rename(etcPath(prefix, "passwd"), target)
	require.NoError(t, err, "Setup: Rename should not return an error")
	err = os.Symlink("passwd.real", etcPath(prefix, "passwd"))
	require.NoError(t, err, "Setup: Symlink should not return an error")

	s, err := pgs.Open(prefix, false)
	require.NoError(t, err, "Open should not return an error")
	require.NoError(t, s.Save(), "Save should not return an error")

	fi, err := os.Lstat(etcPath(prefix, "passwd"))
	require.NoError(t, err, "Lstat should not return an error")
	require.NotZero(t, fi.Mode()&os.ModeSymlink, "passwd should still be a symlink")
	require.Equal(t, readFile(t, filepath.Join("testdata", "categorized", "etc", "passwd")), readFile(t, target), "Symlink target should be updated")
}
