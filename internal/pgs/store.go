// Package pgs reads, validates, edits and writes the passwd, group, shadow and gshadow
// files of a system following the strict PGS convention.
//
// Users and groups are split into categories, each one in its own section of the
// passwd and group files. Opening a database which is not yet split in sections
// classifies every entry by policy, and saving it writes the categorized layout.
package pgs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/ubuntu/decorate"
	pgslocking "github.com/ubuntu/strictpgs/internal/pgs/locking"
	"github.com/ubuntu/strictpgs/internal/pgs/policy"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"github.com/ubuntu/strictpgs/log"
)

type options struct {
	loginDefsPath string
	lockPath      string
}

// Option represents an optional function to override Open default values.
type Option func(*options)

// WithLoginDefsPath overrides the path of the login.defs file providing the ID ranges.
func WithLoginDefsPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.loginDefsPath = path
		}
	}
}

// WithLockPath overrides the path of the lock file taken by read-write stores.
func WithLockPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.lockPath = path
		}
	}
}

type paths struct {
	etc     string
	passwd  string
	group   string
	shadow  string
	gshadow string
}

func newPaths(prefix string) paths {
	etc := filepath.Join(prefix, "etc")
	return paths{
		etc:     etc,
		passwd:  filepath.Join(etc, "passwd"),
		group:   filepath.Join(etc, "group"),
		shadow:  filepath.Join(etc, "shadow"),
		gshadow: filepath.Join(etc, "gshadow"),
	}
}

type userRecord struct {
	entry    types.PasswdEntry
	category types.UserCategory
}

type groupRecord struct {
	entry    types.GroupEntry
	category types.GroupCategory
}

// Store is an account database loaded in memory.
// A Store is not safe for concurrent use.
type Store struct {
	paths    paths
	ranges   policy.Ranges
	readOnly bool
	closed   bool
	unlock   func() error

	users      map[string]*userRecord
	groups     map[string]*groupRecord
	userOrder  map[types.UserCategory][]string
	groupOrder map[types.GroupCategory][]string

	shadow      map[string]types.ShadowEntry
	shadowOrder []string

	// secondaryGroups maps a user name to the groups listing it as member, excluding its own per-user group.
	secondaryGroups map[string][]string

	gshadow []byte
}

// Open loads the account database under prefix/etc and checks the invariants which cannot be repaired.
// A read-write store holds the password database lock until Save or Discard is called.
func Open(prefix string, readOnly bool, args ...Option) (s *Store, err error) {
	defer decorate.OnError(&err, "could not open account database in %q", prefix)

	opts := options{
		loginDefsPath: filepath.Join(prefix, "etc", "login.defs"),
		lockPath:      pgslocking.DefaultLockPath(prefix),
	}
	for _, arg := range args {
		arg(&opts)
	}

	ranges, err := policy.LoadRanges(opts.loginDefsPath)
	if err != nil {
		return nil, err
	}

	s = &Store{
		paths:    newPaths(prefix),
		ranges:   ranges,
		readOnly: readOnly,
	}

	if !readOnly {
		unlock, lockErr := pgslocking.WriteLock(opts.lockPath)
		if lockErr != nil {
			return nil, lockErr
		}
		s.unlock = unlock
		// s is nil once a failing return statement has run.
		defer func() {
			if err != nil {
				err = errors.Join(err, unlock())
			}
		}()
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	if err := s.checkUnrecoverable(); err != nil {
		return nil, err
	}

	log.Debugf(context.Background(), "Opened account database in %q (read-only: %v)", prefix, readOnly)
	return s, nil
}

// Discard releases the store without writing anything.
func (s *Store) Discard() error {
	if s.closed {
		return ErrClosed
	}
	return s.release()
}

func (s *Store) release() error {
	s.closed = true
	if s.unlock == nil {
		return nil
	}
	return s.unlock()
}

// Ranges returns the normal ID ranges in use.
func (s *Store) Ranges() policy.Ranges {
	return s.ranges
}

// SystemUsers returns the system users, in file order.
func (s *Store) SystemUsers() []string { return slices.Clone(s.userOrder[types.UserSystem]) }

// NormalUsers returns the normal users, in file order.
func (s *Store) NormalUsers() []string { return slices.Clone(s.userOrder[types.UserNormal]) }

// SoftwareUsers returns the software users, in file order.
func (s *Store) SoftwareUsers() []string { return slices.Clone(s.userOrder[types.UserSoftware]) }

// DeprecatedUsers returns the deprecated users, in file order.
func (s *Store) DeprecatedUsers() []string { return slices.Clone(s.userOrder[types.UserDeprecated]) }

// SystemGroups returns the system groups, in file order.
func (s *Store) SystemGroups() []string { return slices.Clone(s.groupOrder[types.GroupSystem]) }

// PerUserGroups returns the per-user groups, in file order.
func (s *Store) PerUserGroups() []string { return slices.Clone(s.groupOrder[types.GroupPerUser]) }

// StandAloneGroups returns the stand-alone groups, in file order.
func (s *Store) StandAloneGroups() []string { return slices.Clone(s.groupOrder[types.GroupStandAlone]) }

// DeviceGroups returns the device groups, in file order.
func (s *Store) DeviceGroups() []string { return slices.Clone(s.groupOrder[types.GroupDevice]) }

// SoftwareGroups returns the software groups, in file order.
func (s *Store) SoftwareGroups() []string { return slices.Clone(s.groupOrder[types.GroupSoftware]) }

// DeprecatedGroups returns the deprecated groups, in file order.
func (s *Store) DeprecatedGroups() []string { return slices.Clone(s.groupOrder[types.GroupDeprecated]) }

// UsersOf returns the users of category c, in file order.
func (s *Store) UsersOf(c types.UserCategory) []string { return slices.Clone(s.userOrder[c]) }

// GroupsOf returns the groups of category c, in file order.
func (s *Store) GroupsOf(c types.GroupCategory) []string { return slices.Clone(s.groupOrder[c]) }

// SecondaryGroupsOfUser returns the groups listing name as a member, except its own per-user group.
func (s *Store) SecondaryGroupsOfUser(name string) []string {
	return slices.Clone(s.secondaryGroups[name])
}

// User returns the passwd entry of name and its category.
func (s *Store) User(name string) (types.PasswdEntry, types.UserCategory, error) {
	r, ok := s.users[name]
	if !ok {
		return types.PasswdEntry{}, 0, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	return r.entry, r.category, nil
}

// Group returns the group entry of name and its category.
func (s *Store) Group(name string) (types.GroupEntry, types.GroupCategory, error) {
	r, ok := s.groups[name]
	if !ok {
		return types.GroupEntry{}, 0, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}
	return r.entry.DeepCopy(), r.category, nil
}

// clone returns a copy of the store sharing no mutable state with it.
func (s *Store) clone() *Store {
	c := *s

	c.users = make(map[string]*userRecord, len(s.users))
	for name, u := range s.users {
		r := *u
		c.users[name] = &r
	}
	c.groups = make(map[string]*groupRecord, len(s.groups))
	for name, g := range s.groups {
		c.groups[name] = &groupRecord{entry: g.entry.DeepCopy(), category: g.category}
	}

	c.userOrder = cloneLists(s.userOrder)
	c.groupOrder = cloneLists(s.groupOrder)
	c.secondaryGroups = cloneLists(s.secondaryGroups)

	c.shadow = maps.Clone(s.shadow)
	c.shadowOrder = slices.Clone(s.shadowOrder)
	c.gshadow = slices.Clone(s.gshadow)

	return &c
}

func cloneLists[K comparable](m map[K][]string) map[K][]string {
	c := make(map[K][]string, len(m))
	for k, v := range m {
		c[k] = slices.Clone(v)
	}
	return c
}

// groupsInFileOrder returns every group name in the order of the categorized group file.
func (s *Store) groupsInFileOrder() []string {
	var names []string
	for _, c := range types.GroupCategories {
		names = append(names, s.groupOrder[c]...)
	}
	return names
}

// rebuildSecondaryIndex recomputes the secondary groups of every user, following the given group order.
func (s *Store) rebuildSecondaryIndex(groupNames []string) {
	s.secondaryGroups = make(map[string][]string)
	for _, name := range groupNames {
		g := s.groups[name]
		for _, u := range g.entry.Users {
			if g.category == types.GroupPerUser && u == name {
				continue
			}
			if slices.Contains(s.secondaryGroups[u], name) {
				continue
			}
			s.secondaryGroups[u] = append(s.secondaryGroups[u], name)
		}
	}
}
