// Package spinlock implements the two lock flavors the trap and
// scheduler paths need: a plain test-and-set spinlock for short
// critical sections shared between the timer-interrupt path and
// ordinary kernel code, and an irqsave variant that also disables
// interrupt delivery for the critical section's duration, for state
// the interrupt handler itself touches (the PCB table, the ready
// queue). Grounded on the locking style used throughout the teacher's
// packages (sync.Mutex-embedding structs), generalized here to a
// hand-rolled spinlock since a goroutine spinning in a tight loop, not
// blocking in the scheduler, is what correctly models a single-core
// kernel's interrupt-disabled critical section.
package spinlock

import "sync/atomic"

/// Spinlock_t is a test-and-set spinlock.
type Spinlock_t struct {
	held int32
}

/// Lock spins until the lock is acquired.
func (l *Spinlock_t) Lock() {
	for !atomic.CompareAndSwapInt32(&l.held, 0, 1) {
	}
}

/// Unlock releases the lock.
func (l *Spinlock_t) Unlock() {
	atomic.StoreInt32(&l.held, 0)
}

/// Irqsave_t is a spinlock paired with the saved interrupt-enable
/// state, so a critical section that must not be reentered by an
/// interrupt handler can disable interrupt delivery for its duration
/// and restore it exactly as it found it.
type Irqsave_t struct {
	Spinlock_t
	wasEnabled bool
}

/// IntrEnabled reports whether interrupt delivery is enabled. Set by
/// the trap package; read here so Lock can save/restore it.
var IntrEnabled func() bool

/// SetIntrEnabled installs or removes interrupt delivery. Set by the
/// trap package.
var SetIntrEnabled func(bool)

/// Lock disables interrupts, then spins for the lock.
func (l *Irqsave_t) Lock() {
	en := IntrEnabled != nil && IntrEnabled()
	if SetIntrEnabled != nil {
		SetIntrEnabled(false)
	}
	l.Spinlock_t.Lock()
	l.wasEnabled = en
}

/// Unlock releases the lock and restores the interrupt-enable state
/// that was in effect before Lock was called.
func (l *Irqsave_t) Unlock() {
	was := l.wasEnabled
	l.Spinlock_t.Unlock()
	if was && SetIntrEnabled != nil {
		SetIntrEnabled(true)
	}
}
