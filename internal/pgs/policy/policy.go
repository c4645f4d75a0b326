// Package policy holds the fixed account lists and numeric ranges of the strict PGS convention.
package policy

import "slices"

const (
	// NoLoginShell is the shell of software users.
	NoLoginShell = "/sbin/nologin"
	// NormalUserShell is the shell given to new normal users.
	NormalUserShell = "/bin/bash"
	// HomeDirRoot is the parent directory of normal user homes.
	HomeDirRoot = "/home"
	// PlaceholderPasswd is the password field of passwd and group entries.
	PlaceholderPasswd = "x"
	// MinPasswordLength is the minimum length of a normal user shadow password.
	MinPasswordLength = 5
	// StandAloneGIDStart is where the search for a free stand-alone GID starts.
	StandAloneGIDStart = 5000
)

var (
	// SystemUsers are the system users, in passwd file order.
	SystemUsers = []string{"root", "nobody"}

	// SystemGroups are the system groups, in group file order.
	SystemGroups = []string{"root", "nogroup", "wheel", "users", "games"}

	// DeviceGroups are the groups granting access to devices.
	DeviceGroups = []string{
		"tty", "disk", "lp", "kmem", "floppy", "audio", "cdrom", "tape", "video",
		"cdrw", "usb", "input", "kvm", "render", "sgx", "dialout", "uucp",
	}

	// DeprecatedUsers are historical users kept only for compatibility.
	DeprecatedUsers = []string{
		"bin", "daemon", "adm", "lp", "sync", "shutdown", "halt", "mail", "news",
		"uucp", "operator", "games", "ftp",
	}

	// DeprecatedGroups are historical groups kept only for compatibility.
	DeprecatedGroups = []string{
		"bin", "daemon", "sys", "adm", "mail", "news", "man", "ftp", "console",
		"utmp", "cron", "smmsp",
	}
)

// IsSystemUser returns true if name is a system user.
func IsSystemUser(name string) bool { return slices.Contains(SystemUsers, name) }

// IsSystemGroup returns true if name is a system group.
func IsSystemGroup(name string) bool { return slices.Contains(SystemGroups, name) }

// IsDeviceGroup returns true if name is a device group.
func IsDeviceGroup(name string) bool { return slices.Contains(DeviceGroups, name) }

// IsDeprecatedUser returns true if name is a known deprecated user.
func IsDeprecatedUser(name string) bool { return slices.Contains(DeprecatedUsers, name) }

// IsDeprecatedGroup returns true if name is a known deprecated group.
func IsDeprecatedGroup(name string) bool { return slices.Contains(DeprecatedGroups, name) }

// Ranges are the normal ID ranges. Each range is half open: [min, max).
type Ranges struct {
	UIDMin uint32 `yaml:"uid_min"`
	UIDMax uint32 `yaml:"uid_max"`
	GIDMin uint32 `yaml:"gid_min"`
	GIDMax uint32 `yaml:"gid_max"`
}

// DefaultRanges are used when there is no login.defs file.
var DefaultRanges = Ranges{UIDMin: 1000, UIDMax: 10000, GIDMin: 1000, GIDMax: 10000}

// IsNormalUID returns true if uid is in the normal user range.
func (r Ranges) IsNormalUID(uid uint32) bool {
	return uid >= r.UIDMin && uid < r.UIDMax
}

// IsNormalGID returns true if gid is in the normal group range.
func (r Ranges) IsNormalGID(gid uint32) bool {
	return gid >= r.GIDMin && gid < r.GIDMax
}
