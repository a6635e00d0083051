// dirops.go - directory-relative operations (the Go analog of the original
// C tools' fstatat/openat/renameat/unlinkat/fchownat/mkdirat usage).
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2
//
// The walk and purge workers own exactly one open directory handle at a
// time and perform their per-entry stat/open/rename/unlink/rmdir/touch
// operations relative to that handle's file descriptor, never by
// re-resolving the full path from the root. This matches spec.md's
// "directory-relative stat that does not follow symbolic links" rule and
// ppurge's atomic rename-into-quarantine requirement. ChownPath and
// ChmodPath are the path-based exceptions, used by the meta-report chown
// and by the repair tool.

package fsinfo

import (
	"os"

	"golang.org/x/sys/unix"
)

// OpenDir opens 'nm' for reading directory entries.
func OpenDir(nm string) (*os.File, error) {
	fd, err := os.Open(nm)
	if err != nil {
		return nil, &Error{"opendir", nm, err}
	}
	return fd, nil
}

// OpenDirAt opens the directory named 'name' relative to 'dirfd'.
func OpenDirAt(dirfd int, name string) (*os.File, error) {
	fd, err := unix.Openat(dirfd, name, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return nil, &Error{"openat", name, err}
	}
	return os.NewFile(uintptr(fd), name), nil
}

// MkdirAt creates a directory relative to 'dirfd' with the given mode,
// tolerating EEXIST (another worker may have raced us to create it).
func MkdirAt(dirfd int, name string, mode uint32) error {
	err := unix.Mkdirat(dirfd, name, mode)
	if err != nil && err != unix.EEXIST {
		return &Error{"mkdirat", name, err}
	}
	return nil
}

// RenameAt moves 'oldName' (relative to 'oldDirfd') to 'newName' (relative
// to 'newDirfd'), atomically within a single file system.
func RenameAt(oldDirfd int, oldName string, newDirfd int, newName string) error {
	if err := unix.Renameat(oldDirfd, oldName, newDirfd, newName); err != nil {
		return &Error{"renameat", oldName, err}
	}
	return nil
}

// UnlinkAt removes a file relative to 'dirfd'.
func UnlinkAt(dirfd int, name string) error {
	if err := unix.Unlinkat(dirfd, name, 0); err != nil {
		return &Error{"unlinkat", name, err}
	}
	return nil
}

// RmdirAt removes an (empty) directory relative to 'dirfd'.
func RmdirAt(dirfd int, name string) error {
	if err := unix.Unlinkat(dirfd, name, unix.AT_REMOVEDIR); err != nil {
		return &Error{"rmdir", name, err}
	}
	return nil
}

// TouchNowAt resets both atime and mtime of the entry to "now" -- used by
// ppurge to repair files with a zero or negative mtime/atime.
func TouchNowAt(dirfd int, name string) error {
	now := unix.NsecToTimespec(0)
	now.Nsec = unix.UTIME_NOW
	ts := [2]unix.Timespec{now, now}
	if err := unix.UtimesNanoAt(dirfd, name, ts[:], unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &Error{"utimes", name, err}
	}
	return nil
}

// ChownAt changes ownership of an entry relative to 'dirfd', without
// following symlinks.
func ChownAt(dirfd int, name string, uid, gid int) error {
	if err := unix.Fchownat(dirfd, name, uid, gid, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &Error{"chown", name, err}
	}
	return nil
}

// ChmodAt changes the mode bits of an entry relative to 'dirfd'.
//
// Linux has no fchmodat(..., AT_SYMLINK_NOFOLLOW) support for regular
// files/dirs (only the no-op symlink case), so this follows a symlink
// named by 'name' and changes its target.
func ChmodAt(dirfd int, name string, mode uint32) error {
	if err := unix.Fchmodat(dirfd, name, mode, 0); err != nil {
		return &Error{"chmod", name, err}
	}
	return nil
}

// ChownPath changes ownership of a fully resolved path without following
// symlinks -- used by the meta-report tool's conditional chown, which
// operates on a worker's own path buffer rather than a directory fd.
func ChownPath(path string, uid, gid int) error {
	if err := unix.Lchown(path, uid, gid); err != nil {
		return &Error{"lchown", path, err}
	}
	return nil
}

// ChmodPath changes the mode bits of a fully resolved path -- used by the
// repair tool, which (like the original repairshr.c) operates on full path
// strings rather than directory-relative descriptors.
func ChmodPath(path string, mode uint32) error {
	if err := unix.Chmod(path, mode); err != nil {
		return &Error{"chmod", path, err}
	}
	return nil
}
