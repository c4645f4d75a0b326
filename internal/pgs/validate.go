package pgs

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/pgs/policy"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"github.com/ubuntu/strictpgs/internal/sliceutils"
)

// Verify checks every invariant of the convention and returns all violations, each one wrapping ErrFormat.
// Ordering and derived state violations are repaired by Save.
func (s *Store) Verify() (err error) {
	defer decorate.OnError(&err, "account database does not follow the convention")

	if s.closed {
		return ErrClosed
	}

	return errors.Join(s.checkUnrecoverable(), s.checkRecoverable())
}

// checkUnrecoverable checks the invariants which cannot be repaired automatically.
func (s *Store) checkUnrecoverable() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, violation(format, args...))
	}

	systemUsers := s.userOrder[types.UserSystem]
	if !sliceutils.EqualContent(systemUsers, policy.SystemUsers) {
		add("system users are %v: missing %v, unexpected %v", systemUsers,
			sliceutils.Difference(policy.SystemUsers, systemUsers), sliceutils.Difference(systemUsers, policy.SystemUsers))
	}
	for _, name := range systemUsers {
		if _, ok := s.shadow[name]; !ok {
			add("no shadow entry for system user %q", name)
		}
		if s.users[name].entry.Gecos != "" {
			add("system user %q must not have a comment", name)
		}
	}

	if systemGroups := s.groupOrder[types.GroupSystem]; !sliceutils.EqualContent(systemGroups, policy.SystemGroups) {
		add("system groups are %v: missing %v, unexpected %v", systemGroups,
			sliceutils.Difference(policy.SystemGroups, systemGroups), sliceutils.Difference(systemGroups, policy.SystemGroups))
	}

	normalUsers := s.userOrder[types.UserNormal]
	for _, name := range normalUsers {
		u := s.users[name].entry
		if !s.ranges.IsNormalUID(u.UID) {
			add("UID %d of normal user %q is out of range [%d, %d)", u.UID, name, s.ranges.UIDMin, s.ranges.UIDMax)
		}
		if u.GID != u.UID {
			add("primary group ID %d of normal user %q is not its UID %d", u.GID, name, u.UID)
		}
		if g, ok := s.groups[name]; !ok || g.category != types.GroupPerUser {
			add("no per-user group for normal user %q", name)
		} else {
			if g.entry.GID != u.UID {
				add("per-user group ID %d of normal user %q is not its UID %d", g.entry.GID, name, u.UID)
			}
			if !s.ranges.IsNormalGID(g.entry.GID) {
				add("GID %d of per-user group %q is out of range [%d, %d)", g.entry.GID, name, s.ranges.GIDMin, s.ranges.GIDMax)
			}
		}
		if sh, ok := s.shadow[name]; !ok {
			add("no shadow entry for normal user %q", name)
		} else if len(sh.Passwd) < policy.MinPasswordLength {
			add("normal user %q has no password", name)
		}
		if u.Gecos != "" {
			add("normal user %q must not have a comment", name)
		}
	}

	if perUser := s.groupOrder[types.GroupPerUser]; !sliceutils.EqualContent(perUser, normalUsers) {
		add("per-user groups %v do not match normal users %v", perUser, normalUsers)
	}

	for _, name := range s.groupOrder[types.GroupStandAlone] {
		if gid := s.groups[name].entry.GID; !s.ranges.IsNormalGID(gid) {
			add("GID %d of stand-alone group %q is out of range [%d, %d)", gid, name, s.ranges.GIDMin, s.ranges.GIDMax)
		}
	}

	for _, name := range s.userOrder[types.UserSoftware] {
		if _, ok := s.shadow[name]; ok {
			add("software user %q must not have a shadow entry", name)
		}
	}

	return errors.Join(errs...)
}

// checkRecoverable checks the ordering and derived state invariants that Save repairs.
func (s *Store) checkRecoverable() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, violation(format, args...))
	}

	if systemUsers := s.userOrder[types.UserSystem]; !slices.Equal(systemUsers, policy.SystemUsers) {
		add("system users %v are not in order %v", systemUsers, policy.SystemUsers)
	}
	if systemGroups := s.groupOrder[types.GroupSystem]; !slices.Equal(systemGroups, policy.SystemGroups) {
		add("system groups %v are not in order %v", systemGroups, policy.SystemGroups)
	}

	normalUsers := s.userOrder[types.UserNormal]
	if !slices.IsSortedFunc(normalUsers, s.compareUIDs) {
		add("normal users %v are not sorted by UID", sliceutils.Map(normalUsers, s.userWithUID))
	}
	if perUser := s.groupOrder[types.GroupPerUser]; !slices.Equal(perUser, normalUsers) {
		add("per-user groups %v are not in the order of normal users %v", perUser, normalUsers)
	}

	if standAlone := s.groupOrder[types.GroupStandAlone]; !slices.IsSortedFunc(standAlone, s.compareGIDs) {
		add("stand-alone groups %v are not sorted by GID", sliceutils.Map(standAlone, s.groupWithGID))
	}

	softwareUsers := s.userOrder[types.UserSoftware]
	if softwareGroups := s.groupOrder[types.GroupSoftware]; !slices.Equal(softwareUsers, softwareGroups) {
		add("software groups %v do not match software users %v", softwareGroups, softwareUsers)
	}
	for _, name := range softwareUsers {
		u := s.users[name].entry
		if u.UID >= s.ranges.UIDMin {
			add("UID %d of software user %q is not below %d", u.UID, name, s.ranges.UIDMin)
		}
		if u.Shell != policy.NoLoginShell {
			add("shell of software user %q is %q, expected %q", name, u.Shell, policy.NoLoginShell)
		}
		if g, ok := s.groups[name]; ok && g.entry.GID != u.UID {
			add("GID %d of software group %q is not the UID %d of its user", g.entry.GID, name, u.UID)
		}
	}
	for _, name := range s.groupOrder[types.GroupSoftware] {
		if gid := s.groups[name].entry.GID; gid >= s.ranges.GIDMin {
			add("GID %d of software group %q is not below %d", gid, name, s.ranges.GIDMin)
		}
	}

	for _, name := range s.groupOrder[types.GroupDeprecated] {
		if members := s.groups[name].entry.Users; len(members) > 0 {
			add("deprecated group %q must not have members, got %v", name, members)
		}
	}

	if want := s.canonicalShadowOrder(); !slices.Equal(s.shadowOrder, want) {
		add("shadow entries %v are not %v", s.shadowOrder, want)
	}

	if len(s.gshadow) != 0 {
		add("%s must be empty", s.paths.gshadow)
	}

	return errors.Join(errs...)
}

func (s *Store) compareUIDs(a, b string) int {
	return cmp.Compare(s.users[a].entry.UID, s.users[b].entry.UID)
}

func (s *Store) compareGIDs(a, b string) int {
	return cmp.Compare(s.groups[a].entry.GID, s.groups[b].entry.GID)
}

func (s *Store) userWithUID(name string) string {
	return fmt.Sprintf("%s(%d)", name, s.users[name].entry.UID)
}

func (s *Store) groupWithGID(name string) string {
	return fmt.Sprintf("%s(%d)", name, s.groups[name].entry.GID)
}

// canonicalShadowOrder returns system users in policy order, followed by normal users sorted by UID.
func (s *Store) canonicalShadowOrder() []string {
	var names []string
	for _, name := range policy.SystemUsers {
		if u, ok := s.users[name]; ok && u.category == types.UserSystem {
			names = append(names, name)
		}
	}
	normal := slices.Clone(s.userOrder[types.UserNormal])
	slices.SortStableFunc(normal, s.compareUIDs)
	return append(names, normal...)
}
