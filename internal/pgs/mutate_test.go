package pgs_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
)

var tightLoginDefs = pgs.WithLoginDefsPath(filepath.Join("testdata", "tight-login.defs"))

func TestAddNormalUser(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fixture  string
		edits    []edit
		args     []pgs.Option
		name     string
		password string
		addFirst string

		wantID  uint32
		wantErr error
	}{
		"Adds_user_with_lowest_free_ID":         {fixture: "categorized", name: "userc", wantID: 1002},
		"Adds_first_user_at_UID_MIN":            {fixture: "system-only", name: "userc", wantID: 1000},
		"Skips_IDs_used_by_groups":              {fixture: "categorized", edits: []edit{{file: "group", old: "developers:x:5000:", new: "admins:x:1002:\ndevelopers:x:5000:"}}, name: "userc", wantID: 1003},
		"Skips_IDs_used_by_users":               {fixture: "categorized", edits: []edit{{file: "passwd", old: "daemon:x:2:2:", new: "games:x:1002:100::/:/sbin/nologin\ndaemon:x:2:2:"}}, name: "userc", wantID: 1003},
		"Accepts_names_with_digits_and_dashes":  {fixture: "system-only", name: "_user-1", wantID: 1000},
		"Adds_last_free_ID_of_login.defs_range": {fixture: "system-only", args: []pgs.Option{tightLoginDefs}, name: "userc", wantID: 1000},

		"Error_on_existing_user":           {fixture: "categorized", name: "usera", wantErr: pgs.ErrAdd},
		"Error_on_existing_group_name":     {fixture: "categorized", name: "developers", wantErr: pgs.ErrAdd},
		"Error_on_name_of_software_user":   {fixture: "categorized", name: "sshd", wantErr: pgs.ErrAdd},
		"Error_on_invalid_name":            {fixture: "categorized", name: "User C", wantErr: pgs.ErrAdd},
		"Error_on_name_starting_with_dash": {fixture: "categorized", name: "-userc", wantErr: pgs.ErrAdd},
		"Error_on_empty_name":              {fixture: "categorized", name: "", wantErr: pgs.ErrAdd},
		"Error_on_short_password":          {fixture: "categorized", name: "userc", password: "1234", wantErr: pgs.ErrAdd},
		"Error_on_password_with_colon":     {fixture: "categorized", name: "userc", password: "$6$a:b$c", wantErr: pgs.ErrAdd},
		"Error_when_no_ID_is_left":         {fixture: "system-only", args: []pgs.Option{tightLoginDefs}, addFirst: "userb", name: "userc", wantErr: pgs.ErrAdd},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.password == "" {
				tc.password = "$6$salt$hash"
			}

			s, err := pgs.Open(newPrefix(t, tc.fixture, tc.edits...), false, tc.args...)
			require.NoError(t, err, "Open should not return an error")
			t.Cleanup(func() { _ = s.Discard() })

			if tc.addFirst != "" {
				err := s.AddNormalUser(tc.addFirst, tc.password)
				require.NoError(t, err, "Setup: AddNormalUser should not return an error")
			}

			before := s.Snapshot()
			err = s.AddNormalUser(tc.name, tc.password)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "AddNormalUser should return the expected error")
				require.Equal(t, before, s.Snapshot(), "A failed AddNormalUser should not change the store")
				return
			}
			require.NoError(t, err, "AddNormalUser should not return an error")

			u, c, err := s.User(tc.name)
			require.NoError(t, err, "User should find the new user")
			require.Equal(t, types.UserNormal, c, "New user should be a normal user")
			require.Equal(t, types.PasswdEntry{
				Name: tc.name, Passwd: "x", UID: tc.wantID, GID: tc.wantID,
				Dir: "/home/" + tc.name, Shell: "/bin/bash",
			}, u, "New user entry should match")

			g, gc, err := s.Group(tc.name)
			require.NoError(t, err, "Group should find the new per-user group")
			require.Equal(t, types.GroupPerUser, gc, "New group should be a per-user group")
			require.Equal(t, tc.wantID, g.GID, "Per-user group should have the user ID")
			require.Empty(t, g.Users, "Per-user group should have no members")

			require.Equal(t, tc.name, s.NormalUsers()[len(s.NormalUsers())-1], "New user should be appended to normal users")
			require.Equal(t, tc.name, s.PerUserGroups()[len(s.PerUserGroups())-1], "New group should be appended to per-user groups")
			require.NoError(t, s.Verify(), "Store should still pass verification")
		})
	}
}

func TestRemoveNormalUser(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		edits []edit
		name  string

		wantSecondaryGroups map[string][]string
		wantErr             error
	}{
		"Removes_normal_user": {name: "userb", wantSecondaryGroups: map[string][]string{"usera": {"wheel", "users", "developers"}}},
		"Removes_its_group_from_the_groups_of_its_members": {
			edits:               []edit{{file: "group", old: "userb:x:1001:", new: "userb:x:1001:usera"}},
			name:                "userb",
			wantSecondaryGroups: map[string][]string{"usera": {"wheel", "users", "developers"}},
		},

		"Error_on_unknown_user":  {name: "userz", wantErr: pgs.ErrNotFound},
		"Error_on_system_user":   {name: "root", wantErr: pgs.ErrNotFound},
		"Error_on_software_user": {name: "sshd", wantErr: pgs.ErrNotFound},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			prefix := newPrefix(t, "categorized", tc.edits...)
			s, err := pgs.Open(prefix, false)
			require.NoError(t, err, "Open should not return an error")

			err = s.RemoveNormalUser(tc.name)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, pgs.ErrRemove, "RemoveNormalUser should return a removal error")
				require.ErrorIs(t, err, tc.wantErr, "RemoveNormalUser should return the expected error")
				require.NoError(t, s.Discard(), "Discard should not return an error")
				return
			}
			require.NoError(t, err, "RemoveNormalUser should not return an error")

			_, _, err = s.User(tc.name)
			require.ErrorIs(t, err, pgs.ErrNotFound, "User should be gone")
			_, _, err = s.Group(tc.name)
			require.ErrorIs(t, err, pgs.ErrNotFound, "Per-user group should be gone")
			require.Empty(t, s.SecondaryGroupsOfUser(tc.name), "Secondary groups should be gone")
			require.NotContains(t, s.NormalUsers(), tc.name, "User should not be listed anymore")
			require.NotContains(t, s.PerUserGroups(), tc.name, "Per-user group should not be listed anymore")
			for user, want := range tc.wantSecondaryGroups {
				require.Equal(t, want, s.SecondaryGroupsOfUser(user), "Secondary groups of %q should match", user)
			}

			g, _, err := s.Group("developers")
			require.NoError(t, err, "Group should not return an error")
			require.Equal(t, []string{"usera"}, g.Users, "User should be removed from group members")

			require.NoError(t, s.Verify(), "Store should still pass verification")
			require.NoError(t, s.Save(), "Save should not return an error")
			require.NotContains(t, readFile(t, etcPath(prefix, "shadow")), tc.name, "Shadow entry should be removed")
			require.NotContains(t, readFile(t, etcPath(prefix, "group")), tc.name, "Memberships should be removed")
		})
	}
}

func TestAddStandAloneGroup(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fixture  string
		args     []pgs.Option
		name     string
		addFirst string

		wantGID uint32
		wantErr error
	}{
		"Adds_group_after_existing_stand_alone_groups": {fixture: "categorized", name: "admins", wantGID: 5001},
		"Adds_group_at_default_start":                  {fixture: "system-only", name: "admins", wantGID: 5000},
		"Falls_back_to_GID_MIN_when_start_is_too_high": {fixture: "system-only", args: []pgs.Option{tightLoginDefs}, name: "admins", wantGID: 1000},

		"Error_on_existing_group":   {fixture: "categorized", name: "audio", wantErr: pgs.ErrAdd},
		"Error_on_existing_user":    {fixture: "categorized", name: "bin", wantErr: pgs.ErrAdd},
		"Error_on_invalid_name":     {fixture: "categorized", name: "Admins", wantErr: pgs.ErrAdd},
		"Error_when_no_GID_is_left": {fixture: "system-only", args: []pgs.Option{tightLoginDefs}, addFirst: "staff", name: "admins", wantErr: pgs.ErrAdd},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := pgs.Open(newPrefix(t, tc.fixture), false, tc.args...)
			require.NoError(t, err, "Open should not return an error")
			t.Cleanup(func() { _ = s.Discard() })

			if tc.addFirst != "" {
				err := s.AddStandAloneGroup(tc.addFirst)
				require.NoError(t, err, "Setup: AddStandAloneGroup should not return an error")
			}

			before := s.Snapshot()
			err = s.AddStandAloneGroup(tc.name)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "AddStandAloneGroup should return the expected error")
				require.Equal(t, before, s.Snapshot(), "A failed AddStandAloneGroup should not change the store")
				return
			}
			require.NoError(t, err, "AddStandAloneGroup should not return an error")

			g, c, err := s.Group(tc.name)
			require.NoError(t, err, "Group should find the new group")
			require.Equal(t, types.GroupStandAlone, c, "New group should be a stand-alone group")
			require.Equal(t, types.GroupEntry{Name: tc.name, Passwd: "x", GID: tc.wantGID}, g, "New group entry should match")
			require.NoError(t, s.Verify(), "Store should still pass verification")
		})
	}
}

func TestRemoveStandAloneGroup(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string

		wantErr bool
	}{
		"Removes_stand_alone_group": {name: "developers"},

		"Error_on_unknown_group":  {name: "admins", wantErr: true},
		"Error_on_system_group":   {name: "wheel", wantErr: true},
		"Error_on_per_user_group": {name: "usera", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := pgs.Open(newPrefix(t, "categorized"), false)
			require.NoError(t, err, "Open should not return an error")
			t.Cleanup(func() { _ = s.Discard() })

			err = s.RemoveStandAloneGroup(tc.name)
			if tc.wantErr {
				require.ErrorIs(t, err, pgs.ErrRemove, "RemoveStandAloneGroup should return a removal error")
				require.ErrorIs(t, err, pgs.ErrNotFound, "RemoveStandAloneGroup should return a not found error")
				return
			}
			require.NoError(t, err, "RemoveStandAloneGroup should not return an error")

			_, _, err = s.Group(tc.name)
			require.ErrorIs(t, err, pgs.ErrNotFound, "Group should be gone")
			require.Empty(t, s.StandAloneGroups(), "No stand-alone group should be left")
			require.Equal(t, []string{"wheel", "users"}, s.SecondaryGroupsOfUser("usera"), "Group should be removed from secondary groups")
			require.Equal(t, []string{"users", "audio"}, s.SecondaryGroupsOfUser("userb"), "Group should be removed from secondary groups")
		})
	}
}

func TestGroupMembership(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		add    bool
		user   string
		group  string
		addErr bool

		wantMembers []string
		wantErr     error
	}{
		"Adds_user_to_system_group":      {add: true, user: "userb", group: "wheel", wantMembers: []string{"usera", "userb"}},
		"Adds_user_to_device_group":      {add: true, user: "usera", group: "video", wantMembers: []string{"usera"}},
		"Removes_user_from_group":        {user: "usera", group: "developers", wantMembers: []string{"userb"}},
		"Removes_user_from_device_group": {user: "userb", group: "audio"},

		"Error_adding_existing_member":         {add: true, user: "usera", group: "developers", wantErr: pgs.ErrAdd},
		"Error_adding_unknown_user":            {add: true, user: "userz", group: "wheel", wantErr: pgs.ErrNotFound},
		"Error_adding_software_user":           {add: true, user: "sshd", group: "wheel", wantErr: pgs.ErrNotFound},
		"Error_adding_to_unknown_group":        {add: true, user: "usera", group: "admins", wantErr: pgs.ErrNotFound},
		"Error_adding_to_deprecated_group":     {add: true, user: "usera", group: "bin", wantErr: pgs.ErrAdd},
		"Error_adding_to_software_group":       {add: true, user: "usera", group: "sshd", wantErr: pgs.ErrAdd},
		"Error_adding_to_per_user_group":       {add: true, user: "usera", group: "userb", wantErr: pgs.ErrAdd},
		"Error_removing_from_unknown_group":    {user: "usera", group: "admins", wantErr: pgs.ErrNotFound},
		"Error_removing_non_member":            {user: "usera", group: "audio", wantErr: pgs.ErrRemove},
		"Error_removing_member_of_other_group": {user: "userb", group: "wheel", wantErr: pgs.ErrNotFound},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := pgs.Open(newPrefix(t, "categorized"), false)
			require.NoError(t, err, "Open should not return an error")
			t.Cleanup(func() { _ = s.Discard() })

			before := s.Snapshot()
			if tc.add {
				err = s.AddUserToGroup(tc.user, tc.group)
			} else {
				err = s.RemoveUserFromGroup(tc.user, tc.group)
			}
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "Membership change should return the expected error")
				require.Equal(t, before, s.Snapshot(), "A failed membership change should not change the store")
				return
			}
			require.NoError(t, err, "Membership change should not return an error")

			g, _, err := s.Group(tc.group)
			require.NoError(t, err, "Group should not return an error")
			if len(tc.wantMembers) == 0 {
				require.Empty(t, g.Users, "Group should have no members left")
			} else {
				require.Equal(t, tc.wantMembers, g.Users, "Members should match")
			}
			require.Equal(t, tc.add, slices.Contains(s.SecondaryGroupsOfUser(tc.user), tc.group), "Secondary groups should be updated")
			require.NoError(t, s.Verify(), "Store should still pass verification")
		})
	}
}

func TestMutationsNeedWritableStore(t *testing.T) {
	t.Parallel()

	mutations := map[string]func(s *pgs.Store) error{
		"AddNormalUser":         func(s *pgs.Store) error { return s.AddNormalUser("userc", "$6$salt$hash") },
		"RemoveNormalUser":      func(s *pgs.Store) error { return s.RemoveNormalUser("usera") },
		"AddStandAloneGroup":    func(s *pgs.Store) error { return s.AddStandAloneGroup("admins") },
		"RemoveStandAloneGroup": func(s *pgs.Store) error { return s.RemoveStandAloneGroup("developers") },
		"AddUserToGroup":        func(s *pgs.Store) error { return s.AddUserToGroup("usera", "video") },
		"RemoveUserFromGroup":   func(s *pgs.Store) error { return s.RemoveUserFromGroup("usera", "wheel") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			prefix := newPrefix(t, "categorized")

			ro, err := pgs.Open(prefix, true)
			require.NoError(t, err, "Open should not return an error")
			require.ErrorIs(t, mutate(ro), pgs.ErrReadOnly, "Mutating a read-only store should fail")

			rw, err := pgs.Open(prefix, false)
			require.NoError(t, err, "Open should not return an error")
			require.NoError(t, rw.Save(), "Save should not return an error")
			require.ErrorIs(t, mutate(rw), pgs.ErrClosed, "Mutating a saved store should fail")
		})
	}
}
