package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ShadowFieldsCount is the number of colon separated fields of a shadow line.
const ShadowFieldsCount = 9

// String returns the passwd line of the entry, without the new line.
func (u PasswdEntry) String() string {
	return strings.Join([]string{
		u.Name,
		u.Passwd,
		strconv.FormatUint(uint64(u.UID), 10),
		strconv.FormatUint(uint64(u.GID), 10),
		u.Gecos,
		u.Dir,
		u.Shell,
	}, ":")
}

// Validate validates the passwd entry values.
func (u PasswdEntry) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("user %q cannot have empty name", u.String())
	}
	for field, v := range map[string]string{
		"name":     u.Name,
		"password": u.Passwd,
		"gecos":    u.Gecos,
		"home":     u.Dir,
		"shell":    u.Shell,
	} {
		if strings.ContainsAny(v, ":\n") {
			return fmt.Errorf("user %q %s %q cannot contain ':' or new line", u.Name, field, v)
		}
	}
	return nil
}

// String returns the group line of the entry, without the new line.
func (g GroupEntry) String() string {
	return strings.Join([]string{
		g.Name,
		g.Passwd,
		strconv.FormatUint(uint64(g.GID), 10),
		strings.Join(g.Users, ","),
	}, ":")
}

// Validate validates the group entry values.
func (g GroupEntry) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("group %q cannot have empty name", g.String())
	}

	if g.GID == 0 && g.Name != "root" {
		return fmt.Errorf("only root group can have GID 0, not %q", g.Name)
	}

	if strings.ContainsAny(g.Name, ":,\n") {
		return fmt.Errorf("group %q cannot contain ':', ',' or new line", g.Name)
	}

	if strings.ContainsAny(g.Passwd, ":,\n") {
		return fmt.Errorf("group %q passwd %q cannot contain ':', ',' or new line", g.Name, g.Passwd)
	}

	if slices.ContainsFunc(g.Users, func(u string) bool { return u == "" || strings.ContainsAny(u, ":,\n") }) {
		return fmt.Errorf("group %q cannot contain empty users or users with ':', ',' or new line (%v)", g.Name, g.Users)
	}

	return nil
}

// DeepCopy makes a deep copy of the group entry.
func (g GroupEntry) DeepCopy() GroupEntry {
	g.Users = slices.Clone(g.Users)
	return g
}

// String returns the shadow line of the entry, without the new line.
// Every aging field is left empty.
func (s ShadowEntry) String() string {
	return s.Name + ":" + s.Passwd + strings.Repeat(":", ShadowFieldsCount-2)
}

// Validate validates the shadow entry values.
func (s ShadowEntry) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("shadow entry %q cannot have empty name", s.String())
	}
	if strings.ContainsAny(s.Name, ":\n") || strings.ContainsAny(s.Passwd, ":\n") {
		return fmt.Errorf("shadow entry %q cannot contain ':' or new line", s.Name)
	}
	return nil
}
