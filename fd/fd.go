// Package fd implements the per-process open file descriptor table
// entry. Adapted from the teacher's fd package: Fd_t, Copyfd, and
// Close_panic are kept as-is, since dup()-style descriptor copying and
// a panicking close for invariant-violating paths are needed
// regardless of what kind of filesystem sits underneath. Cwd_t and
// its bpath-based path canonicalization are dropped: this kernel's
// filesystem collaborator is a flat namespace of named files with no
// directories to change into (spec.md's open() takes a filename, not
// a path).
package fd

import "defs"
import "fdops"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
	// Fops is an interface implemented via a pointer receiver, thus
	// Fops is a reference, not a value.
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}
