package pgs

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/fileutils"
	"github.com/ubuntu/strictpgs/internal/pgs/policy"
	"github.com/ubuntu/strictpgs/internal/pgs/types"
	"github.com/ubuntu/strictpgs/log"
)

type line struct {
	num  int
	text string
}

// splitLines returns the non blank lines of content with their 1-based line number.
func splitLines(content []byte) []line {
	var lines []line
	for i, l := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, line{num: i + 1, text: l})
	}
	return lines
}

type parsedUser struct {
	entry    types.PasswdEntry
	category types.UserCategory
}

type parsedGroup struct {
	entry    types.GroupEntry
	category types.GroupCategory
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil || id > math.MaxUint32 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return uint32(id), nil
}

// parsePasswd parses the passwd file content. categorized is true if the file starts with a section header,
// otherwise the returned categories are meaningless and must be computed by classifyUsers.
func parsePasswd(path string, content []byte) (users []parsedUser, categorized bool, err error) {
	lines := splitLines(content)
	if len(lines) > 0 {
		_, categorized = types.UserCategoryFromHeader(lines[0].text)
	}

	seen := make(map[string]int)
	var current types.UserCategory
	for _, l := range lines {
		if strings.HasPrefix(l.text, "#") {
			if !categorized {
				continue
			}
			c, ok := types.UserCategoryFromHeader(l.text)
			if !ok {
				return nil, false, lineError(path, l.num, "unknown section header %q", l.text)
			}
			current = c
			continue
		}

		// Format of a line composing the passwd file is:
		// name:password:uid:gid:gecos:home:shell
		elems := strings.Split(l.text, ":")
		if len(elems) != 7 {
			return nil, false, lineError(path, l.num, "malformed entry (should have 7 fields, got %d)", len(elems))
		}
		uid, err := parseID(elems[2])
		if err != nil {
			return nil, false, lineError(path, l.num, "%v", err)
		}
		gid, err := parseID(elems[3])
		if err != nil {
			return nil, false, lineError(path, l.num, "%v", err)
		}
		u := types.PasswdEntry{
			Name:   elems[0],
			Passwd: elems[1],
			UID:    uid,
			GID:    gid,
			Gecos:  elems[4],
			Dir:    elems[5],
			Shell:  elems[6],
		}
		if err := u.Validate(); err != nil {
			return nil, false, lineError(path, l.num, "%v", err)
		}
		if prev, ok := seen[u.Name]; ok {
			return nil, false, lineError(path, l.num, "duplicate user %q (first defined on line %d)", u.Name, prev)
		}
		seen[u.Name] = l.num

		users = append(users, parsedUser{entry: u, category: current})
	}

	return users, categorized, nil
}

// parseGroup parses the group file content. categorized is true if the file starts with a section header,
// otherwise the returned categories are meaningless and must be computed by classifyGroups.
func parseGroup(path string, content []byte) (groups []parsedGroup, categorized bool, err error) {
	lines := splitLines(content)
	if len(lines) > 0 {
		_, categorized = types.GroupCategoryFromHeader(lines[0].text)
	}

	seen := make(map[string]int)
	var current types.GroupCategory
	for _, l := range lines {
		if strings.HasPrefix(l.text, "#") {
			if !categorized {
				continue
			}
			c, ok := types.GroupCategoryFromHeader(l.text)
			if !ok {
				return nil, false, lineError(path, l.num, "unknown section header %q", l.text)
			}
			current = c
			continue
		}

		// Format of a line composing the group file is:
		// group_name:password:group_id:user1,…,usern
		elems := strings.Split(l.text, ":")
		if len(elems) != 4 {
			return nil, false, lineError(path, l.num, "malformed entry (should have 4 fields, got %d)", len(elems))
		}
		gid, err := parseID(elems[2])
		if err != nil {
			return nil, false, lineError(path, l.num, "%v", err)
		}
		var members []string
		if elems[3] != "" {
			members = strings.Split(elems[3], ",")
		}
		g := types.GroupEntry{
			Name:   elems[0],
			Passwd: elems[1],
			GID:    gid,
			Users:  members,
		}
		if err := g.Validate(); err != nil {
			return nil, false, lineError(path, l.num, "%v", err)
		}
		if prev, ok := seen[g.Name]; ok {
			return nil, false, lineError(path, l.num, "duplicate group %q (first defined on line %d)", g.Name, prev)
		}
		seen[g.Name] = l.num

		groups = append(groups, parsedGroup{entry: g, category: current})
	}

	return groups, categorized, nil
}

// parseShadow parses the shadow file content. Password aging is not part of the convention:
// non-empty aging fields are an error, unless dropAging is set.
func parseShadow(path string, content []byte, dropAging bool) (entries []types.ShadowEntry, err error) {
	seen := make(map[string]int)
	for _, l := range splitLines(content) {
		elems := strings.Split(l.text, ":")
		if len(elems) != types.ShadowFieldsCount {
			return nil, lineError(path, l.num, "malformed entry (should have %d fields, got %d)", types.ShadowFieldsCount, len(elems))
		}

		s := types.ShadowEntry{Name: elems[0], Passwd: elems[1]}
		if err := s.Validate(); err != nil {
			return nil, lineError(path, l.num, "%v", err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, lineError(path, l.num, "duplicate shadow entry %q (first defined on line %d)", s.Name, prev)
		}
		seen[s.Name] = l.num

		if slices.ContainsFunc(elems[2:], func(f string) bool { return f != "" }) {
			if !dropAging {
				return nil, lineError(path, l.num, "password aging fields of %q must be empty", s.Name)
			}
			log.Noticef(context.Background(), "Dropping password aging information of %q", s.Name)
		}

		entries = append(entries, s)
	}
	return entries, nil
}

// classifyUsers sets the category of users read from a passwd file without sections.
func classifyUsers(users []parsedUser, groups []parsedGroup, r policy.Ranges) {
	groupGIDs := make(map[string]uint32, len(groups))
	for _, g := range groups {
		groupGIDs[g.entry.Name] = g.entry.GID
	}

	for i := range users {
		users[i].category = classifyUser(users[i].entry, groupGIDs, r)
	}
}

func classifyUser(u types.PasswdEntry, groupGIDs map[string]uint32, r policy.Ranges) types.UserCategory {
	switch {
	case policy.IsSystemUser(u.Name):
		return types.UserSystem
	case r.IsNormalUID(u.UID):
		return types.UserNormal
	case policy.IsDeprecatedUser(u.Name):
		return types.UserDeprecated
	}

	if gid, ok := groupGIDs[u.Name]; ok && gid == u.UID && u.UID < r.UIDMin && u.Shell == policy.NoLoginShell {
		return types.UserSoftware
	}
	return types.UserDeprecated
}

// classifyGroups sets the category of groups read from a group file without sections.
// The users categories must already be known.
func classifyGroups(groups []parsedGroup, users []parsedUser, r policy.Ranges) {
	byName := make(map[string]parsedUser, len(users))
	for _, u := range users {
		byName[u.entry.Name] = u
	}

	for i := range groups {
		groups[i].category = classifyGroup(groups[i].entry, byName, r)
	}
}

func classifyGroup(g types.GroupEntry, users map[string]parsedUser, r policy.Ranges) types.GroupCategory {
	switch {
	case policy.IsSystemGroup(g.Name):
		return types.GroupSystem
	case policy.IsDeviceGroup(g.Name):
		return types.GroupDevice
	case policy.IsDeprecatedGroup(g.Name):
		return types.GroupDeprecated
	}

	u, ok := users[g.Name]
	if ok && u.category == types.UserNormal && u.entry.UID == g.GID {
		return types.GroupPerUser
	}
	if r.IsNormalGID(g.GID) {
		return types.GroupStandAlone
	}
	if ok && u.category == types.UserSoftware {
		return types.GroupSoftware
	}
	return types.GroupDeprecated
}

// load reads and parses the database files.
func (s *Store) load() (err error) {
	defer decorate.OnError(&err, "could not load account database")

	passwdContent, err := os.ReadFile(s.paths.passwd)
	if err != nil {
		return err
	}
	groupContent, err := os.ReadFile(s.paths.group)
	if err != nil {
		return err
	}
	shadowContent, err := os.ReadFile(s.paths.shadow)
	if err != nil {
		return err
	}
	gshadowContent, err := fileutils.ReadFileIfExists(s.paths.gshadow)
	if err != nil {
		return err
	}

	log.Debugf(context.Background(), "Parsing users from %q", s.paths.passwd)
	users, passwdCategorized, err := parsePasswd(s.paths.passwd, passwdContent)
	if err != nil {
		return err
	}
	log.Debugf(context.Background(), "Parsing groups from %q", s.paths.group)
	groups, groupCategorized, err := parseGroup(s.paths.group, groupContent)
	if err != nil {
		return err
	}

	if !passwdCategorized {
		log.Noticef(context.Background(), "%q has no sections, classifying users by policy", s.paths.passwd)
		classifyUsers(users, groups, s.ranges)
	}
	if !groupCategorized {
		log.Noticef(context.Background(), "%q has no sections, classifying groups by policy", s.paths.group)
		classifyGroups(groups, users, s.ranges)
	}

	log.Debugf(context.Background(), "Parsing shadow entries from %q", s.paths.shadow)
	shadow, err := parseShadow(s.paths.shadow, shadowContent, !passwdCategorized)
	if err != nil {
		return err
	}

	s.users = make(map[string]*userRecord, len(users))
	s.userOrder = make(map[types.UserCategory][]string)
	for _, u := range users {
		s.users[u.entry.Name] = &userRecord{entry: u.entry, category: u.category}
		s.userOrder[u.category] = append(s.userOrder[u.category], u.entry.Name)
	}

	s.groups = make(map[string]*groupRecord, len(groups))
	s.groupOrder = make(map[types.GroupCategory][]string)
	groupNames := make([]string, 0, len(groups))
	for _, g := range groups {
		s.groups[g.entry.Name] = &groupRecord{entry: g.entry, category: g.category}
		s.groupOrder[g.category] = append(s.groupOrder[g.category], g.entry.Name)
		groupNames = append(groupNames, g.entry.Name)
	}
	s.rebuildSecondaryIndex(groupNames)

	s.shadow = make(map[string]types.ShadowEntry, len(shadow))
	s.shadowOrder = make([]string, 0, len(shadow))
	for _, e := range shadow {
		s.shadow[e.Name] = e
		s.shadowOrder = append(s.shadowOrder, e.Name)
	}

	s.gshadow = bytes.Clone(gshadowContent)

	return nil
}
