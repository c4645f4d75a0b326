package pgs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/fileutils"
	"github.com/ubuntu/strictpgs/internal/pgs/policy"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"github.com/ubuntu/strictpgs/internal/sliceutils"
	"github.com/ubuntu/strictpgs/log"
)

// Save repairs the ordering of the entries, checks every invariant, then writes the four
// database files and releases the store.
// The repairs are made on a copy of the store: if an invariant still does not hold after them,
// nothing is written, the store is left as it was and stays open so that it can be discarded.
func (s *Store) Save() (err error) {
	defer decorate.OnError(&err, "could not save account database")

	if err := s.checkWritable(); err != nil {
		return err
	}

	fixed := s.clone()
	fixed.fixate()

	if err := fixed.Verify(); err != nil {
		return err
	}
	*s = *fixed

	return errors.Join(s.write(), s.release())
}

// fixate puts the store in canonical order and drops the derived state the convention forbids.
func (s *Store) fixate() {
	ctx := context.Background()

	s.userOrder[types.UserSystem] = sortByPolicy(s.userOrder[types.UserSystem], policy.SystemUsers)
	s.groupOrder[types.GroupSystem] = sortByPolicy(s.groupOrder[types.GroupSystem], policy.SystemGroups)

	slices.SortStableFunc(s.userOrder[types.UserNormal], s.compareUIDs)
	s.groupOrder[types.GroupPerUser] = slices.Clone(s.userOrder[types.UserNormal])

	slices.SortStableFunc(s.groupOrder[types.GroupStandAlone], s.compareGIDs)

	s.groupOrder[types.GroupSoftware] = parallelTo(s.groupOrder[types.GroupSoftware], s.userOrder[types.UserSoftware])

	for _, name := range s.groupOrder[types.GroupDeprecated] {
		g := s.groups[name]
		if len(g.entry.Users) == 0 {
			continue
		}
		log.Warningf(ctx, "Removing members %v of deprecated group %q", g.entry.Users, name)
		g.entry.Users = nil
	}

	order := s.canonicalShadowOrder()
	for _, name := range sliceutils.Difference(s.shadowOrder, order) {
		log.Noticef(ctx, "Dropping shadow entry of %q", name)
		delete(s.shadow, name)
	}
	s.shadowOrder = order

	if len(s.gshadow) > 0 {
		log.Warningf(ctx, "Emptying %s", s.paths.gshadow)
		s.gshadow = nil
	}

	s.rebuildSecondaryIndex(s.groupsInFileOrder())
}

// sortByPolicy orders names following the policy list. Names missing from the policy list go last.
func sortByPolicy(names, policyOrder []string) []string {
	rank := func(name string) int {
		if i := slices.Index(policyOrder, name); i >= 0 {
			return i
		}
		return len(policyOrder)
	}
	slices.SortStableFunc(names, func(a, b string) int { return rank(a) - rank(b) })
	return names
}

// parallelTo orders groups like users. Groups without a matching user keep their order after the others.
func parallelTo(groups, users []string) []string {
	ordered := sliceutils.Intersection(users, groups)
	return append(ordered, sliceutils.Difference(groups, ordered)...)
}

func (s *Store) renderPasswd() []byte {
	var b bytes.Buffer
	for i, c := range types.UserCategories {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Header() + "\n")
		for _, name := range s.userOrder[c] {
			b.WriteString(s.users[name].entry.String() + "\n")
		}
	}
	return b.Bytes()
}

func (s *Store) renderGroup() []byte {
	var b bytes.Buffer
	for i, c := range types.GroupCategories {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Header() + "\n")
		for _, name := range s.groupOrder[c] {
			b.WriteString(s.groups[name].entry.String() + "\n")
		}
	}
	return b.Bytes()
}

func (s *Store) renderShadow() []byte {
	var b bytes.Buffer
	for _, name := range s.shadowOrder {
		b.WriteString(s.shadow[name].String() + "\n")
	}
	return b.Bytes()
}

type databaseFile struct {
	path    string
	content []byte
	perm    os.FileMode
}

// write renders the four database files, stages each of them next to the original with a
// backup of the previous content, then renames them over the originals.
// Nothing is replaced if any file fails to be staged.
func (s *Store) write() (err error) {
	defer decorate.OnError(&err, "could not write account database")

	files := []databaseFile{
		{path: s.paths.passwd, content: s.renderPasswd(), perm: 0644},
		{path: s.paths.group, content: s.renderGroup(), perm: 0644},
		{path: s.paths.shadow, content: s.renderShadow(), perm: 0600},
		{path: s.paths.gshadow, content: s.gshadow, perm: 0600},
	}

	var staged []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range staged {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warningf(context.Background(), "Failed to remove %q: %v", p, rmErr)
			}
		}
	}()

	for _, f := range files {
		if err := stageFile(f.path, f.content, f.perm); err != nil {
			return err
		}
		staged = append(staged, temporaryPath(f.path))
	}

	for _, f := range files {
		tempPath := temporaryPath(f.path)
		if err := fileutils.Lrename(tempPath, f.path); err != nil {
			return fmt.Errorf("error renaming %s to %s: %w", tempPath, f.path, err)
		}
		log.Debugf(context.Background(), "Wrote %q", f.path)
	}

	return fileutils.SyncDir(s.paths.etc)
}

func backupPath(path string) string {
	return fmt.Sprintf("%s-", path)
}

func temporaryPath(path string) string {
	return fmt.Sprintf("%s+", path)
}

// stageFile backs up path, then writes content to its temporary file.
// The mode and owner of the existing file are kept, perm is used for new files.
func stageFile(path string, content []byte, perm os.FileMode) (err error) {
	defer decorate.OnError(&err, "could not stage %q", path)

	exists, err := fileutils.FileExists(path)
	if err != nil {
		return err
	}
	if exists {
		backup := backupPath(path)
		if err := os.Remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warningf(context.Background(), "Failed to remove backup %q: %v", backup, err)
		}
		log.Debugf(context.Background(), "Backing up %q to %q", path, backup)
		if err := fileutils.CopyFile(path, backup); err != nil {
			return fmt.Errorf("error backing up %s: %w", path, err)
		}
	}

	tempPath := temporaryPath(path)
	if err := fileutils.WriteFileLike(tempPath, path, content, perm); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}
