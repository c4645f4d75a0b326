package policy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/internal/fileutils"
	"github.com/ubuntu/strictpgs/log"
	"gopkg.in/ini.v1"
)

// ErrInvalidDefs is returned when the login.defs file lacks or has invalid ID ranges.
var ErrInvalidDefs = errors.New("invalid login.defs")

// LoadRanges reads the UID and GID ranges from a login.defs file.
// DefaultRanges is returned if the file does not exist.
func LoadRanges(path string) (r Ranges, err error) {
	defer decorate.OnError(&err, "could not load ID ranges from %q", path)

	exists, err := fileutils.FileExists(path)
	if err != nil {
		return r, err
	}
	if !exists {
		log.Debugf(context.Background(), "No login.defs at %q, using default ranges", path)
		return DefaultRanges, nil
	}

	defs, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:      " \t",
		SkipUnrecognizableLines: true,
		IgnoreInlineComment:     true,
	}, path)
	if err != nil {
		return r, err
	}

	sec := defs.Section(ini.DefaultSection)
	for key, dst := range map[string]*uint32{
		"UID_MIN": &r.UIDMin,
		"UID_MAX": &r.UIDMax,
		"GID_MIN": &r.GIDMin,
		"GID_MAX": &r.GIDMax,
	} {
		k, err := sec.GetKey(key)
		if err != nil {
			return r, fmt.Errorf("%w: missing %s", ErrInvalidDefs, key)
		}
		v, err := strconv.ParseUint(k.String(), 10, 32)
		if err != nil {
			return r, fmt.Errorf("%w: %s is not a valid ID: %v", ErrInvalidDefs, key, err)
		}
		*dst = uint32(v)
	}

	if r.UIDMin >= r.UIDMax {
		return r, fmt.Errorf("%w: UID_MIN %d is not lower than UID_MAX %d", ErrInvalidDefs, r.UIDMin, r.UIDMax)
	}
	if r.GIDMin >= r.GIDMax {
		return r, fmt.Errorf("%w: GID_MIN %d is not lower than GID_MAX %d", ErrInvalidDefs, r.GIDMin, r.GIDMax)
	}

	log.Debugf(context.Background(), "ID ranges from %q: %+v", path, r)
	return r, nil
}
