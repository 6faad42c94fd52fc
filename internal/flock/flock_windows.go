//go:build windows

package flock

import (
	"errors"
	"math"
	"os"
	"syscall"
	"unsafe"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

const (
	// Flags for LockFileEx.
	// https://learn.microsoft.com/en-us/windows/win32/api/fileapi/nf-fileapi-lockfileex
	lockfileFailImmediately = 1
	lockfileExclusiveLock   = 2

	// https://learn.microsoft.com/en-us/windows/win32/debug/system-error-codes--0-499-
	errorLockViolation syscall.Errno = 33
)

func tryLock(f *os.File, exclusive bool) error {
	flags := uint32(lockfileFailImmediately)
	if exclusive {
		flags |= lockfileExclusiveLock
	}
	ol := &syscall.Overlapped{}
	r1, _, e1 := syscall.SyscallN(
		procLockFileEx.Addr(),
		f.Fd(),
		uintptr(flags),
		0,                       // reserved
		0,                       // bytes low
		uintptr(math.MaxUint32), // bytes high
		uintptr(unsafe.Pointer(ol)),
	)
	if r1 == 0 {
		if e1 != 0 {
			return error(e1)
		}
		return syscall.EINVAL
	}
	return nil
}

// Unlock releases whatever lock this handle holds on f.
func Unlock(f *os.File) error {
	ol := &syscall.Overlapped{}
	r1, _, e1 := syscall.SyscallN(
		procUnlockFileEx.Addr(),
		f.Fd(),
		0,                       // reserved
		0,                       // bytes low
		uintptr(math.MaxUint32), // bytes high
		uintptr(unsafe.Pointer(ol)),
	)
	if r1 == 0 {
		if e1 != 0 {
			return error(e1)
		}
		return syscall.EINVAL
	}
	return nil
}

func contended(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == errorLockViolation
}
