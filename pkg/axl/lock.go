// Advisory hardware ownership lock
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package axl

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"axl-go/pkg/axt"
)

// acquireLock takes the exclusive advisory lock that marks the
// hardware as owned by this process. The holder's pid is written into
// the file for operator inspection.
func acquireLock(path string) (*os.File, error) {
	const op = "axl.Open"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, axt.Wrap(axt.OpenError, op, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, axt.Errorf(axt.OpenError, op,
				"hardware is in use by another process (lock %s)", path)
		}
		return nil, axt.Wrap(axt.OpenError, op, err)
	}
	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Sync()
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}

// IsUsing reports whether another process currently owns the hardware
// behind the given lock file. An empty path tests the default lock.
func IsUsing(path string) (bool, error) {
	if path == "" {
		path = DefaultLockPath()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, axt.Wrap(axt.OpenError, "axl.IsUsing", err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return true, nil
		}
		return false, axt.Wrap(axt.OpenError, "axl.IsUsing", err)
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, nil
}
