// Package defs holds the types and constants shared across every kernel
// package: error codes, syscall numbers, signal numbers, and device ids.
package defs

// Err_t is a kernel error code. Zero means success; a negative value
// names a failure. Syscalls narrow any non-zero Err_t to -1 before
// returning to user space (see syscall.Dispatch).
type Err_t int

// Error codes returned by kernel operations. Negated, as in the
// teacher's common/defs packages, so a raw comparison against 0
// distinguishes success from failure without an extra bool.
const (
	EFAULT       Err_t = 1 // bad user pointer or pointer outside any mapping
	EINVAL       Err_t = 2 // bad argument
	ENOMEM       Err_t = 3 // out of physical frames
	ENOHEAP      Err_t = 4 // kernel heap exhausted
	ENAMETOOLONG Err_t = 5 // string exceeded its bound
	EMFILE       Err_t = 6 // file descriptor table full
	EBADF        Err_t = 7 // invalid or closed file descriptor
	ENOENT       Err_t = 8 // filesystem collaborator has no such dentry
	ESRCH        Err_t = 9 // no such pid / slot
	EAGAIN       Err_t = 10 // would block with nothing to report (not used for syscall blocking itself)
	ENOSPC       Err_t = 11 // PCB table or ARP table or similar fixed table is full
)

// Pid_t identifies a process control block slot. A negative Pid_t
// marks an unused PCB slot or, as Proc_t.ParentPid, the root of a tty's
// process tree (see proc.Proc_t).
type Pid_t int32

// NoPid is the sentinel stored in an unused PCB slot's Pid field.
const NoPid Pid_t = -1
