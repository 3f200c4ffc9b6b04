// Package fdops defines the two interfaces that let the syscall
// layer, the file descriptor table, and individual devices (console,
// RTC, regular files, UDP sockets) stay decoupled: Userio_i abstracts
// "a buffer, either in user memory or the kernel's," and Fdops_i
// abstracts "a thing a file descriptor can read, write, and close."
// Grounded on the teacher's fd/fdops packages, which split the same
// two contracts out for the same reason.
package fdops

import "defs"

/// Userio_i abstracts a source or sink for a read/write syscall: a
/// vm.Userbuf_t backed by user memory, or a vm.Fakeubuf_t backed by a
/// kernel-formatted byte slice.
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

/// Fdops_i is implemented by every kind of open file descriptor:
/// regular files, the RTC device, the console, and UDP sockets.
type Fdops_i interface {
	Close() defs.Err_t
	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
}
