// Package timer tracks the kernel's notion of elapsed time and the
// set of callbacks waiting for a future tick: the periodic alarm
// broadcast and ARP entry eviction.
// Ticklist_t wraps a container/list.List the same way the teacher's
// fs.BlkList_t wraps one for block queues; a sorted-by-deadline list
// is cheap here because a teaching kernel schedules a handful of
// timers at once, not thousands.
package timer

import "container/list"
import "time"

/// Ticks counts timer interrupts delivered since boot.
var Ticks int64

/// TickHz is the configured timer interrupt frequency in Hz.
const TickHz = 100

/// Callback_t is one pending timer callback.
type Callback_t struct {
	Deadline int64 // absolute tick count
	Fn       func()
}

/// Ticklist_t holds pending callbacks ordered by deadline.
type Ticklist_t struct {
	l *list.List
}

/// MkTicklist creates an empty callback list.
func MkTicklist() *Ticklist_t {
	tl := &Ticklist_t{}
	tl.l = list.New()
	return tl
}

/// Len returns the number of pending callbacks.
func (tl *Ticklist_t) Len() int {
	return tl.l.Len()
}

/// Add schedules fn to run at the given absolute tick, keeping the
/// list ordered by deadline.
func (tl *Ticklist_t) Add(deadline int64, fn func()) {
	cb := &Callback_t{Deadline: deadline, Fn: fn}
	for e := tl.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*Callback_t).Deadline > deadline {
			tl.l.InsertBefore(cb, e)
			return
		}
	}
	tl.l.PushBack(cb)
}

/// After schedules fn to run durTicks ticks from now.
func (tl *Ticklist_t) After(durTicks int64, fn func()) {
	tl.Add(Ticks+durTicks, fn)
}

/// Fire runs and removes every callback whose deadline has passed.
func (tl *Ticklist_t) Fire() {
	for {
		e := tl.l.Front()
		if e == nil {
			return
		}
		cb := e.Value.(*Callback_t)
		if cb.Deadline > Ticks {
			return
		}
		tl.l.Remove(e)
		cb.Fn()
	}
}

/// Tick advances the global tick counter and fires due callbacks on
/// every registered list. Called from the timer interrupt handler.
func Tick(lists ...*Ticklist_t) {
	Ticks++
	for _, l := range lists {
		l.Fire()
	}
}

/// Now returns the current wall-clock time, as opposed to the tick
/// count in Ticks.
func Now() time.Time {
	return time.Now()
}
