package pgslocking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ubuntu/strictpgs/log"
	"golang.org/x/sys/unix"
)

type lockedFile struct {
	f *os.File
}

// lckpwdf is a native implementation of the glibc one. We use open file
// description locks, which conflict with the classic record locks taken by
// glibc while also conflicting between two descriptors of the same process.
// As systemd recommends, we don't take the per-database locks.
func lckpwdf(path string) (*lockedFile, error) {
	//nolint:gosec // G301 Permissions 0755 are valid for /etc
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLock, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|unix.O_CLOEXEC|unix.O_NOCTTY|unix.O_NOFOLLOW, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLock, err)
	}

	deadline := time.Now().Add(maxWait)
	for {
		err := unix.FcntlFlock(f.Fd(), unix.F_OFD_SETLK, &unix.Flock_t{
			Type:   unix.F_WRLCK,
			Whence: io.SeekStart,
		})
		if err == nil {
			return &lockedFile{f: f}, nil
		}
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EACCES) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %w", ErrLock, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			_ = f.Close()
			return nil, fmt.Errorf("%w: got no lock in %s", ErrLockTimeout, maxWait)
		}
		log.Debugf(context.Background(), "%q is locked by another process, retrying", path)
		time.Sleep(min(pollInterval, remaining))
	}
}

func (l *lockedFile) ulckpwdf() error {
	err := unix.FcntlFlock(l.f.Fd(), unix.F_OFD_SETLK, &unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: io.SeekStart,
	})
	if closeErr := l.f.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnlock, err)
	}
	return nil
}
