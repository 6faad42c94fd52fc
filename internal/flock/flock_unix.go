//go:build !windows

package flock

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// fcntl POSIX locks give the most consistent behavior across platforms,
// including some compatibility over NFS and CIFS.
func tryLock(f *os.File, exclusive bool) error {
	lockType := int16(syscall.F_RDLCK)
	if exclusive {
		lockType = syscall.F_WRLCK
	}
	lk := &syscall.Flock_t{
		Type:   lockType,
		Whence: int16(io.SeekStart),
		Start:  0,
		Len:    0,
	}
	return syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, lk)
}

// Unlock releases whatever lock this handle holds on f.
func Unlock(f *os.File) error {
	lk := &syscall.Flock_t{
		Type:   syscall.F_UNLCK,
		Whence: int16(io.SeekStart),
	}
	return syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, lk)
}

func contended(err error) bool {
	// F_SETLK reports a held lock as EAGAIN or, on some systems, EACCES.
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EACCES)
}
