// Package access decides UNIX permission checks for inodes.
package access

import "github.com/S1riyS/os-course-lab-4/memfs/internal/models"

// Mask is a set of requested access classes, laid out like the "other" triplet.
type Mask uint32

const (
	Execute Mask = 1 << iota
	Write
	Read
)

// ForOpen returns the access required to open a file with flags.
func ForOpen(flags models.OpenFlags) Mask {
	var m Mask
	if flags.CanRead() {
		m |= Read
	}
	if flags.CanWrite() || flags.Truncate() {
		m |= Write
	}
	return m
}

// Allowed reports whether caller may perform want on inode.
//
// The owner triplet applies when the uid matches, otherwise the group triplet
// when the gid matches, otherwise the other triplet. Only the selected triplet
// is consulted. The superuser bypasses every check.
func Allowed(inode *models.Inode, caller models.Caller, want Mask) bool {
	if caller.IsSuperuser() {
		return true
	}

	var granted Mask
	switch {
	case caller.Uid == inode.Uid:
		granted = Mask(inode.Mode>>6) & 0o7
	case caller.Gid == inode.Gid:
		granted = Mask(inode.Mode>>3) & 0o7
	default:
		granted = Mask(inode.Mode) & 0o7
	}

	return granted&want == want
}

// IsOwner reports whether caller may change the inode's metadata.
func IsOwner(inode *models.Inode, caller models.Caller) bool {
	return caller.IsSuperuser() || caller.Uid == inode.Uid
}
