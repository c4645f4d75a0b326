// Package consts defines the constants used by the project.
package consts

import "github.com/ubuntu/strictpgs/log"

var (
	// Version is the version of the executable.
	Version = "Dev"
)

const (
	// DefaultLogLevel is the default logging level selected without any option.
	DefaultLogLevel = log.NoticeLevel

	// DefaultPrefix is the root under which the account database lives.
	DefaultPrefix = "/"

	// DefaultConfigDir is the system directory searched for the pgsctl configuration file.
	DefaultConfigDir = "/etc/strictpgs"
)
