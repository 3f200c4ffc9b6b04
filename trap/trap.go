// Package trap names the interrupt vectors this kernel recognizes and
// dispatches a delivered trap to its registered handler. There is no
// real IDT here, no ring transition, and no per-CPU interrupt stack:
// Dispatch is the function a test (or, eventually, a from-scratch
// assembly stub) calls with a vector number and a saved register
// snapshot, playing the role the teacher's trapstub plays in
// justanotherdot-biscuit's kernel/main.go. The vector numbering below
// keeps that file's division between CPU exceptions (0-31), the
// syscall gate (0x80), and hardware IRQs (remapped to IRQ_BASE and
// up) rather than reinventing one.
package trap

import "fmt"

import "caller"
import "spinlock"
import "stats"

/// CPU exception vectors relevant to this kernel.
const (
	TRAP_DIVZERO  = 0
	TRAP_PAGEFAULT = 14
)

/// IRQ_BASE is the vector the timer and keyboard IRQs are remapped to,
/// past the CPU exception range and the syscall gate.
const IRQ_BASE = 0x20

const (
	IRQ_TIMER = IRQ_BASE + 0
	IRQ_KBD   = IRQ_BASE + 1
	IRQ_NIC   = IRQ_BASE + 2
	IRQ_RTC   = IRQ_BASE + 3
)

/// TRAP_SYSCALL is the software interrupt vector user code issues to
/// invoke a syscall.
const TRAP_SYSCALL = 0x80

/// Handler_fn handles one delivered trap. tf carries whatever context
/// the specific vector needs (a syscall number and register file for
/// TRAP_SYSCALL, a faulting address for TRAP_PAGEFAULT, nothing for a
/// timer tick).
type Handler_fn func(tf interface{})

var handlers = map[int]Handler_fn{}

/// Register installs the handler for a vector, replacing any handler
/// previously registered for it.
func Register(vector int, fn Handler_fn) {
	handlers[vector] = fn
}

// intrEnabled models the single CPU's interrupt flag. There is no real
// IF bit to flip here, so Dispatch itself is the only simulated
// interrupt source, and disabling it just tells Dispatch to queue
// nothing (timer ticks and device IRQs a test fires while disabled
// are simply not delivered — nothing to replay once re-enabled,
// unlike a real PIC).
var intrEnabled = true

func init() {
	spinlock.IntrEnabled = func() bool { return intrEnabled }
	spinlock.SetIntrEnabled = func(v bool) { intrEnabled = v }
}

/// dc suppresses repeated diagnostic dumps for an unhandled vector
/// reached from the same call chain.
var dc = caller.Distinct_caller_t{Enabled: true}

/// Dispatch routes a delivered trap to its registered handler, and
/// diagnoses (once per distinct call chain) any vector nothing
/// registered for.
func Dispatch(vector int, tf interface{}) {
	isIrq := vector >= IRQ_BASE && vector < IRQ_BASE+8
	if isIrq {
		if !intrEnabled {
			return
		}
		stats.Nirqs[vector]++
	}
	h, ok := handlers[vector]
	if !ok {
		if novel, trace := dc.Distinct(); novel {
			fmt.Printf("trap: unhandled vector %v\n%s", vector, trace)
		}
		return
	}
	h(tf)
}
