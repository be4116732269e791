//go:build windows

package store

import (
	stderrors "errors"
	"io/fs"
	"syscall"
)

const (
	errorSharingViolation syscall.Errno = 32
	errorLockViolation    syscall.Errno = 33
)

// isBusy reports whether err means the destination is open in another process, typically
// the workbook being open in a spreadsheet application.
func isBusy(err error) bool {
	return stderrors.Is(err, fs.ErrPermission) ||
		stderrors.Is(err, errorSharingViolation) ||
		stderrors.Is(err, errorLockViolation)
}
