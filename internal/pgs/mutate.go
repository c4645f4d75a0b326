package pgs

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/pgs/policy"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"github.com/ubuntu/strictpgs/log"
)

// validName is the user and group name format accepted by useradd and groupadd.
var validName = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

func (s *Store) checkWritable() error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// checkNewName checks that name is valid and used by neither a user nor a group.
func (s *Store) checkNewName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: invalid name %q", ErrAdd, name)
	}
	if _, ok := s.users[name]; ok {
		return fmt.Errorf("%w: a user named %q already exists", ErrAdd, name)
	}
	if _, ok := s.groups[name]; ok {
		return fmt.Errorf("%w: a group named %q already exists", ErrAdd, name)
	}
	return nil
}

// freeID returns the lowest ID in [start, end) used neither as UID nor as GID.
func (s *Store) freeID(start, end uint32) (uint32, bool) {
	used := make(map[uint32]struct{}, len(s.users)+len(s.groups))
	for _, u := range s.users {
		used[u.entry.UID] = struct{}{}
	}
	for _, g := range s.groups {
		used[g.entry.GID] = struct{}{}
	}

	for id := start; id < end; id++ {
		if _, ok := used[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

// AddNormalUser adds a normal user with its per-user group and shadow entry.
// password is stored as is in the shadow file: hashing it is up to the caller.
func (s *Store) AddNormalUser(name, password string) (err error) {
	defer decorate.OnError(&err, "could not add normal user %q", name)

	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.checkNewName(name); err != nil {
		return err
	}
	if len(password) < policy.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrAdd, policy.MinPasswordLength)
	}
	if strings.ContainsAny(password, ":\n") {
		return fmt.Errorf("%w: password cannot contain ':' or new line", ErrAdd)
	}

	id, ok := s.freeID(max(s.ranges.UIDMin, s.ranges.GIDMin), min(s.ranges.UIDMax, s.ranges.GIDMax))
	if !ok {
		return fmt.Errorf("%w: no free ID left for a normal user", ErrAdd)
	}

	s.users[name] = &userRecord{
		entry: types.PasswdEntry{
			Name:   name,
			Passwd: policy.PlaceholderPasswd,
			UID:    id,
			GID:    id,
			Dir:    filepath.Join(policy.HomeDirRoot, name),
			Shell:  policy.NormalUserShell,
		},
		category: types.UserNormal,
	}
	s.userOrder[types.UserNormal] = append(s.userOrder[types.UserNormal], name)

	s.groups[name] = &groupRecord{
		entry:    types.GroupEntry{Name: name, Passwd: policy.PlaceholderPasswd, GID: id},
		category: types.GroupPerUser,
	}
	s.groupOrder[types.GroupPerUser] = append(s.groupOrder[types.GroupPerUser], name)

	s.shadow[name] = types.ShadowEntry{Name: name, Passwd: password}
	s.shadowOrder = append(s.shadowOrder, name)

	log.Debugf(context.Background(), "Added normal user %q with ID %d", name, id)
	return nil
}

// RemoveNormalUser removes a normal user, its per-user group, its shadow entry and its group memberships.
func (s *Store) RemoveNormalUser(name string) (err error) {
	defer decorate.OnError(&err, "could not remove normal user %q", name)

	if err := s.checkWritable(); err != nil {
		return err
	}
	if u, ok := s.users[name]; !ok || u.category != types.UserNormal {
		return fmt.Errorf("%w: %w: no normal user %q", ErrRemove, ErrNotFound, name)
	}

	delete(s.shadow, name)
	s.shadowOrder = deleteName(s.shadowOrder, name)

	for _, g := range s.groups {
		g.entry.Users = deleteName(g.entry.Users, name)
	}
	delete(s.secondaryGroups, name)

	if g, ok := s.groups[name]; ok && g.category == types.GroupPerUser {
		for _, m := range g.entry.Users {
			s.removeSecondaryGroup(m, name)
		}
		delete(s.groups, name)
		s.groupOrder[types.GroupPerUser] = deleteName(s.groupOrder[types.GroupPerUser], name)
	}

	delete(s.users, name)
	s.userOrder[types.UserNormal] = deleteName(s.userOrder[types.UserNormal], name)

	log.Debugf(context.Background(), "Removed normal user %q", name)
	return nil
}

// AddStandAloneGroup adds a stand-alone group without members.
func (s *Store) AddStandAloneGroup(name string) (err error) {
	defer decorate.OnError(&err, "could not add stand-alone group %q", name)

	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.checkNewName(name); err != nil {
		return err
	}

	start := max(policy.StandAloneGIDStart, s.ranges.GIDMin)
	if start >= s.ranges.GIDMax {
		start = s.ranges.GIDMin
	}
	gid, ok := s.freeID(start, s.ranges.GIDMax)
	if !ok {
		return fmt.Errorf("%w: no free GID left for a stand-alone group", ErrAdd)
	}

	s.groups[name] = &groupRecord{
		entry:    types.GroupEntry{Name: name, Passwd: policy.PlaceholderPasswd, GID: gid},
		category: types.GroupStandAlone,
	}
	s.groupOrder[types.GroupStandAlone] = append(s.groupOrder[types.GroupStandAlone], name)

	log.Debugf(context.Background(), "Added stand-alone group %q with GID %d", name, gid)
	return nil
}

// RemoveStandAloneGroup removes a stand-alone group.
func (s *Store) RemoveStandAloneGroup(name string) (err error) {
	defer decorate.OnError(&err, "could not remove stand-alone group %q", name)

	if err := s.checkWritable(); err != nil {
		return err
	}
	g, ok := s.groups[name]
	if !ok || g.category != types.GroupStandAlone {
		return fmt.Errorf("%w: %w: no stand-alone group %q", ErrRemove, ErrNotFound, name)
	}

	for _, u := range g.entry.Users {
		s.removeSecondaryGroup(u, name)
	}
	delete(s.groups, name)
	s.groupOrder[types.GroupStandAlone] = deleteName(s.groupOrder[types.GroupStandAlone], name)

	log.Debugf(context.Background(), "Removed stand-alone group %q", name)
	return nil
}

// memberGroupCategories are the categories of groups normal users can be added to.
var memberGroupCategories = []types.GroupCategory{types.GroupSystem, types.GroupStandAlone, types.GroupDevice}

// AddUserToGroup adds a normal user as member of a system, stand-alone or device group.
func (s *Store) AddUserToGroup(user, group string) (err error) {
	defer decorate.OnError(&err, "could not add %q to group %q", user, group)

	if err := s.checkWritable(); err != nil {
		return err
	}
	if u, ok := s.users[user]; !ok || u.category != types.UserNormal {
		return fmt.Errorf("%w: %w: no normal user %q", ErrAdd, ErrNotFound, user)
	}
	g, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("%w: %w: no group %q", ErrAdd, ErrNotFound, group)
	}
	if !slices.Contains(memberGroupCategories, g.category) {
		return fmt.Errorf("%w: %s group %q cannot have members", ErrAdd, g.category, group)
	}
	if slices.Contains(g.entry.Users, user) {
		return fmt.Errorf("%w: %q is already a member", ErrAdd, user)
	}

	g.entry.Users = append(g.entry.Users, user)
	s.secondaryGroups[user] = append(s.secondaryGroups[user], group)

	log.Debugf(context.Background(), "Added %q to group %q", user, group)
	return nil
}

// RemoveUserFromGroup removes a user from the members of a group.
func (s *Store) RemoveUserFromGroup(user, group string) (err error) {
	defer decorate.OnError(&err, "could not remove %q from group %q", user, group)

	if err := s.checkWritable(); err != nil {
		return err
	}
	g, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("%w: %w: no group %q", ErrRemove, ErrNotFound, group)
	}
	if !slices.Contains(g.entry.Users, user) {
		return fmt.Errorf("%w: %w: %q is not a member", ErrRemove, ErrNotFound, user)
	}

	g.entry.Users = deleteName(g.entry.Users, user)
	s.removeSecondaryGroup(user, group)

	log.Debugf(context.Background(), "Removed %q from group %q", user, group)
	return nil
}

func (s *Store) removeSecondaryGroup(user, group string) {
	groups := deleteName(s.secondaryGroups[user], group)
	if len(groups) == 0 {
		delete(s.secondaryGroups, user)
		return
	}
	s.secondaryGroups[user] = groups
}

// deleteName returns names without any occurrence of name.
func deleteName(names []string, name string) []string {
	return slices.DeleteFunc(names, func(n string) bool { return n == name })
}
