//go:build !windows

package store

import (
	stderrors "errors"
	"io/fs"
	"syscall"
)

// isBusy reports whether err means the destination is in use or not writable by us.
// There is no mandatory file locking here, so permission and busy errnos are the signal.
func isBusy(err error) bool {
	return stderrors.Is(err, fs.ErrPermission) ||
		stderrors.Is(err, syscall.EBUSY) ||
		stderrors.Is(err, syscall.ETXTBSY)
}
