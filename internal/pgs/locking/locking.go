// Package pgslocking implements locking of the account database files
// (passwd, group, shadow and gshadow) the way the libc lckpwdf() function
// does: an exclusive record lock on the .pwd.lock file next to them.
//
// The lock is a write lock. Readers are never blocked, but two processes
// holding it cannot interleave their updates of the database, and tools such
// as useradd or passwd from shadow-utils honour it as well.
package pgslocking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/strictpgs/log"
)

// LockFileName is the name of the lock file used by lckpwdf(), in the same directory as passwd.
const LockFileName = ".pwd.lock"

var (
	// maxWait is the maximum wait time for a lock to happen.
	// Keep this in sync with the 15 seconds documented in lckpwdf(3).
	maxWait = 15 * time.Second
	// pollInterval is the delay between two locking attempts.
	pollInterval = time.Second

	heldMu sync.Mutex
	held   = map[string]struct{}{}
)

var (
	// ErrLock is the error when locking the database fails.
	ErrLock = errors.New("failed to lock the account database")

	// ErrUnlock is the error when unlocking the database fails.
	ErrUnlock = errors.New("failed to unlock the account database")

	// ErrLockTimeout is the error when locking the database fails because of timeout.
	ErrLockTimeout = fmt.Errorf("%w: timeout", ErrLock)
)

// DefaultLockPath returns the lock file path for the account database under prefix.
func DefaultLockPath(prefix string) string {
	return filepath.Join(prefix, "etc", LockFileName)
}

// WriteLock takes the write lock on lockPath. It polls the lock until it is
// available, and fails with [ErrLockTimeout] if it couldn't get it in time.
// Locking a path already locked by this process fails immediately.
//
// The returned unlock function releases the lock. It can be called only once.
func WriteLock(lockPath string) (unlock func() error, err error) {
	defer decorate.OnError(&err, "could not lock %q", lockPath)

	lockPath = filepath.Clean(lockPath)

	heldMu.Lock()
	if _, ok := held[lockPath]; ok {
		heldMu.Unlock()
		return nil, fmt.Errorf("%w: we already have the lock", ErrLock)
	}
	held[lockPath] = struct{}{}
	heldMu.Unlock()

	log.Debugf(context.Background(), "Locking account database with %q", lockPath)
	l, err := lckpwdf(lockPath)
	if err != nil {
		heldMu.Lock()
		delete(held, lockPath)
		heldMu.Unlock()
		return nil, err
	}

	var once sync.Once
	unlock = func() (err error) {
		err = fmt.Errorf("%w: we do not have the lock on %q anymore", ErrUnlock, lockPath)
		once.Do(func() {
			log.Debugf(context.Background(), "Unlocking account database %q", lockPath)
			err = l.ulckpwdf()

			heldMu.Lock()
			delete(held, lockPath)
			heldMu.Unlock()
		})
		return err
	}

	return unlock, nil
}
