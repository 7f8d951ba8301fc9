package fusefs

import (
	"syscall"

	"github.com/avoronov/fat16fs/fat16"
)

// toErrno translates a core error into the syscall.Errno that go-fuse
// handlers return; go-fuse hands it on to the kernel. Unrecognised
// errors, including detected corruption, surface as EIO.
func toErrno(err error) syscall.Errno {
	switch err.(type) {
	case nil:
		return 0
	case fat16.NotFoundError:
		return syscall.ENOENT
	case fat16.NotDirectoryError:
		return syscall.ENOTDIR
	case fat16.IsDirectoryError:
		return syscall.EISDIR
	case fat16.ExistsError:
		return syscall.EEXIST
	case fat16.NotEmptyError:
		return syscall.ENOTEMPTY
	case fat16.BusyError:
		return syscall.EBUSY
	case fat16.NoSpaceError:
		return syscall.ENOSPC
	case fat16.InvalidPathError:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
