// Package types provides the records of the account database files.
package types

// PasswdEntry is one line of the passwd file.
type PasswdEntry struct {
	Name   string
	Passwd string
	UID    uint32
	GID    uint32
	Gecos  string
	Dir    string
	Shell  string
}

// GroupEntry is one line of the group file.
type GroupEntry struct {
	Name   string
	Passwd string
	GID    uint32
	Users  []string
}

// ShadowEntry is one line of the shadow file.
// Password aging is not used by this convention, so only the password is kept.
type ShadowEntry struct {
	Name   string
	Passwd string
}
