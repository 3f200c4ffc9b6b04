// Package tinfo tracks the liveness and kill state of every process
// control block, and gives a blocked syscall (a tty read, a UDP
// receive) a channel to wake on when a signal needs to interrupt it.
//
// The teacher's tinfo package solved a different problem: biscuit runs
// each kernel thread as its own goroutine and stashes a pointer to its
// Tnote_t in a patched runtime field so any function can fetch "the
// current thread" without passing it explicitly. This kernel has no
// kernel-level threading below the process: the scheduler here
// switches whole PCBs, not threads within one, and runs on the stock
// toolchain, so there is no goroutine-local slot to stash a pointer
// in. Every function that needs "the current process" takes a
// *proc.Proc_t argument instead; Current/SetCurrent/ClearCurrent are
// dropped and only the doomed-process bookkeeping is kept.
package tinfo

import "sync"

import "defs"

/// Tnote_t stores the kill/wake state for one process control block.
type Tnote_t struct {
	Alive    bool
	Killed   bool
	Isdoomed bool
	// protects Killed, Killnaps.Cond and Kerr, and is a leaf lock
	sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond   *sync.Cond
		Kerr   defs.Err_t
	}
}

/// Doomed reports whether the process is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Threadinfo_t tracks the note for every live process control block,
/// indexed by pid.
type Threadinfo_t struct {
	Notes map[defs.Pid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the process note map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Pid_t]*Tnote_t)
}
