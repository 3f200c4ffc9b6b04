package trap

import "fmt"

import "caller"
import "defs"
import "devfs"
import "mem"
import "net/arp"
import "proc"
import "syscall"
import "timer"
import "tty"

/// Faultinfo_t is the context a CPU exception vector's tf carries: the
/// pid that faulted, whether the fault happened while the kernel
/// itself was executing rather than user code, and (for a page fault)
/// the address that missed.
type Faultinfo_t struct {
	Pid        defs.Pid_t
	Addr       uint32
	KernelMode bool
}

/// Keystroke_t is the decoded scancode the keyboard IRQ handler
/// receives: a character plus the modifier keys held with it.
type Keystroke_t struct {
	Char byte
	Ctrl bool
	Alt  bool
}

// AlarmPeriodTicks mirrors the original kernel's SIGNAL_ALARM cadence
// of ten seconds, driven off the PIT rather than a per-process timer.
const AlarmPeriodTicks = 10 * timer.TickHz

func scheduleAlarm(tl *timer.Ticklist_t) {
	var fire func()
	fire = func() {
		proc.Table.BroadcastAlarm()
		tl.After(AlarmPeriodTicks, fire)
	}
	tl.After(AlarmPeriodTicks, fire)
}

/// WireDefaults registers the handlers every boot path needs: the
/// timer IRQ advances the simulated clock, fires due alarm and ARP
/// eviction callbacks, and runs one scheduler tick; the keyboard IRQ
/// drives the active tty's line discipline plus the tty-switch and
/// Ctrl+C shortcuts; the two CPU exceptions this kernel distinguishes
/// raise the matching signal against the faulting process, or, if the
/// kernel itself was the one that faulted, halt the machine. Kept
/// separate from an init() since it depends on proc.Table already
/// existing with a current process by the time the first trap is
/// dispatched, which only the boot sequence can guarantee.
func WireDefaults() {
	alarmList := timer.MkTicklist()
	scheduleAlarm(alarmList)
	arpList := timer.MkTicklist()
	arp.Table.StartEviction(arpList)

	Register(IRQ_TIMER, func(tf interface{}) {
		timer.Tick(alarmList, arpList)
		proc.Table.Tick()
	})

	Register(IRQ_RTC, func(tf interface{}) {
		devfs.RtcTick()
	})

	Register(IRQ_KBD, func(tf interface{}) {
		ks, ok := tf.(Keystroke_t)
		if !ok {
			return
		}
		switch {
		case ks.Alt && ks.Char >= '1' && ks.Char <= '0'+byte(len(tty.Ttys)):
			tty.Switch(int(ks.Char - '1'))
		case ks.Ctrl && (ks.Char == 'c' || ks.Char == 'C'):
			if tty.Active() < tty.NumTextTtys {
				proc.Table.InterruptTty(tty.Active())
			}
		default:
			tty.Ttys[tty.Active()].Input(ks.Char)
		}
	})

	Register(TRAP_SYSCALL, func(tf interface{}) {
		p, ok := tf.(*proc.Proc_t)
		if !ok {
			return
		}
		num := int(p.Regs.Eax)
		ret := syscall.Dispatch(p, num, p.Regs.Ebx, p.Regs.Ecx, p.Regs.Edx)
		p.Regs.Eax = uint32(ret)
	})

	Register(TRAP_DIVZERO, func(tf interface{}) {
		fi, ok := tf.(Faultinfo_t)
		if !ok {
			return
		}
		if fi.KernelMode {
			killKernel(fmt.Sprintf("divide by zero in kernel mode (pid %v)", fi.Pid))
			return
		}
		raiseOn(fi.Pid, defs.SIGNAL_DIV_ZERO)
	})

	Register(TRAP_PAGEFAULT, func(tf interface{}) {
		fi, ok := tf.(Faultinfo_t)
		if !ok {
			return
		}
		if fi.KernelMode {
			killKernel(fmt.Sprintf("page fault at %#x in kernel mode (pid %v)", fi.Addr, fi.Pid))
			return
		}
		raiseOn(fi.Pid, defs.SIGNAL_SEGFAULT)
	})
}

func raiseOn(pid defs.Pid_t, signum defs.Signum_t) {
	p := proc.Table.Get(pid)
	if p == nil {
		return
	}
	p.Raise(signum, proc.Table)
}

// killKernel handles a CPU exception that struck kernel code rather
// than a user process: there is no process to deliver a signal to and
// no sensible way to keep running, so the screen is given up (any
// process still holding a vidmap'd pointer will fault rather than draw
// over a diagnostic it can't see) and the kernel call stack that led
// here is dumped before halting.
func killKernel(reason string) {
	mem.DisableFramebuffer()
	fmt.Printf("kernel panic: %s\n", reason)
	caller.Callerdump(2)
	panic(reason)
}
