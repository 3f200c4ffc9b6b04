// Package proc implements the process control block table, the
// preemptive round-robin scheduler, and the execute/halt lifecycle.
// This is the module the rest of the kernel is built around: a fixed
// table of PCB slots, a ready queue serviced one quantum at a time by
// the timer interrupt, and a signal/kill path shared with the sig
// package through each PCB's embedded tinfo.Tnote_t.
//
// Grounded on justanotherdot-biscuit's kernel/main.go proc_new (the
// nearest thing in the retrieval pack to a from-scratch PCB
// constructor) and on the original kernel's processes.c, which this
// design follows for the fixed-size PCB array and the single active
// process per CPU. Unlike biscuit, which gives every process its own
// goroutine and multiple kernel threads, this kernel's processes are
// plain data: the scheduler picks one PCB to be "current" and the
// trap package resumes it by restoring its saved register file, since
// there is no real ring transition to switch underneath a goroutine.
package proc

import "fmt"

import "accnt"
import "defs"
import "fd"
import "fs"
import "heap"
import "limits"
import "spinlock"
import "tinfo"
import "ustr"
import "vm"

/// Regs_t is the register file saved across a context switch: general
/// purpose registers plus the instruction pointer, stack pointer, and
/// flags a trap return restores.
type Regs_t struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Ebp      uint32
	Eip, Esp, Eflags   uint32
}

/// Status_t is a process control block's scheduling state.
type Status_t int

const (
	Runnable Status_t = iota
	Running
	Blocked
	Zombie
)

/// Proc_t is one process control block.
type Proc_t struct {
	Pid       defs.Pid_t
	ParentPid defs.Pid_t
	Tty       int
	Status    Status_t
	HaltCode  int

	As  *vm.Vm_t
	Fds [32]*fd.Fd_t

	Name ustr.Ustr
	Args ustr.Ustr

	Regs Regs_t

	Sighandlers [defs.NUM_SIGNALS]uint32
	Sigstatus   [defs.NUM_SIGNALS]defs.Sigstatus_t
	Sigmask     [defs.NUM_SIGNALS]bool

	Accnt accnt.Accnt_t
	Note  tinfo.Tnote_t

	quantum int

	// argsAddr/argsLen describe Args's backing range in ArgsHeap, so
	// halt() can return it; argsLen is 0 when execute() was given no
	// argument string, in which case Args was never heap-backed.
	argsAddr int
	argsLen  int
}

const quantumTicks = 5

/// table_t is the fixed-size PCB table and the ready queue over it,
/// guarded by one global lock the way the original kernel's
/// pcb_spin_lock guards its process table: every public method takes
/// it for its whole duration, since a blocking read may run on a
/// different goroutine than the timer tick advancing the scheduler.
/// The lock is an Irqsave_t, not a plain mutex, since the timer IRQ
/// handler itself takes this same lock (Tick) and must not be put to
/// sleep the way a blocked sync.Mutex.Lock would if another goroutine
/// were interrupted mid-critical-section.
type table_t struct {
	mu      spinlock.Irqsave_t
	slots   []*Proc_t
	ready   []defs.Pid_t
	current defs.Pid_t
	ti      tinfo.Threadinfo_t

	// waiters delivers a just-halted child's status to the goroutine
	// blocked in its parent's execute() syscall, the handoff spec.md
	// describes as waking the parent and stashing the status in its
	// blocking-call data rather than something the parent polls for.
	waiters map[defs.Pid_t]chan int
}

/// ArgsHeap backs every process's argument string: execute() copies
/// the parsed argument bytes into it and halt() frees them, mirroring
/// the original kernel's PCB argument buffers living in its kmalloc
/// heap rather than being owned by the PCB struct itself. Sized for
/// every PCB slot to hold a full execute()-sized argument string at
/// once.
var ArgsHeap = heap.Mkheap(limits.Syslimit.Pcbs * 128)

var Table = &table_t{
	slots:   make([]*Proc_t, limits.Syslimit.Pcbs),
	current: defs.NoPid,
	waiters: make(map[defs.Pid_t]chan int),
}

func init() {
	Table.ti.Init()
}

/// Fsys is the filesystem collaborator every execute() loads program
/// images from. Installed once at boot by the kernel's init path.
var Fsys *fs.Fs_t

/// NewStdio constructs a freshly created process's stdin and stdout
/// file descriptors. proc has no business knowing about ttys or
/// console devices, so the devfs package installs this hook in its
/// init(); every path that creates a PCB (execute() and the root
/// shell's halt-triggered respawn alike) goes through it, so a
/// respawned shell's stdio is wired exactly like a freshly exec'd
/// process's.
var NewStdio func(pid defs.Pid_t, tty int) (stdin, stdout *fd.Fd_t)

/// NewNetFd, if installed, constructs the pre-opened UDP socket every
/// process receives at fd 2. This spec's syscall table has no
/// socket()-style call to mint a UDP fd from nothing, so every process
/// is simply handed one, read and written with the ordinary read/write
/// syscalls like any other descriptor. net/udp installs this hook in
/// its init(), mirroring NewStdio's devfs wiring.
var NewNetFd func(pid defs.Pid_t) *fd.Fd_t

func (t *table_t) alloc() (defs.Pid_t, defs.Err_t) {
	for i, s := range t.slots {
		if s == nil {
			return defs.Pid_t(i), 0
		}
	}
	return 0, -defs.ENOSPC
}

/// Get returns the PCB for pid, or nil if the slot is unused.
func (t *table_t) Get(pid defs.Pid_t) *Proc_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(pid)
}

func (t *table_t) get(pid defs.Pid_t) *Proc_t {
	if int(pid) < 0 || int(pid) >= len(t.slots) {
		return nil
	}
	return t.slots[pid]
}

/// Current returns the PCB currently selected to run, or nil before
/// the first process is created.
func (t *table_t) Current() *Proc_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(t.current)
}

/// Execute loads the named program from the filesystem collaborator
/// into a fresh PCB and enqueues it as runnable. parent is NoPid for
/// the very first process started on a tty (the "root shell").
func (t *table_t) Execute(name, argstr ustr.Ustr, tty int, parent defs.Pid_t) (defs.Pid_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.execute(name, argstr, tty, parent)
}

func (t *table_t) execute(name, argstr ustr.Ustr, tty int, parent defs.Pid_t) (defs.Pid_t, defs.Err_t) {
	dent, err := Fsys.Read_dentry_by_name(name)
	if err != 0 {
		return 0, err
	}
	sz, err := Fsys.File_size(dent.InodeNo)
	if err != 0 {
		return 0, err
	}
	image := make([]byte, sz)
	if _, err := Fsys.Read_data(dent.InodeNo, 0, image); err != 0 {
		return 0, err
	}
	if len(image) < int(defs.EntryOffset)+4 || string(image[:4]) != string(defs.ElfMagic[:]) {
		return 0, -defs.EINVAL
	}
	entry := le32(image[defs.EntryOffset:])

	as, err := vm.Init_proc_vm(image)
	if err != 0 {
		return 0, err
	}

	args := argstr
	argsAddr, argsLen := 0, len(argstr)
	if argsLen > 0 {
		a, err := ArgsHeap.Alloc(argsLen)
		if err != 0 {
			as.Free()
			return 0, err
		}
		copy(ArgsHeap.Bytes(a, argsLen), argstr)
		args = ustr.Ustr(ArgsHeap.Bytes(a, argsLen))
		argsAddr = a
	}

	pid, err := t.alloc()
	if err != 0 {
		if argsLen > 0 {
			ArgsHeap.Free(argsAddr, argsLen)
		}
		as.Free()
		return 0, err
	}

	p := &Proc_t{
		Pid:       pid,
		ParentPid: parent,
		Tty:       tty,
		Status:    Runnable,
		As:        as,
		Name:      name,
		Args:      args,
		argsAddr:  argsAddr,
		argsLen:   argsLen,
		quantum:   quantumTicks,
	}
	p.Regs.Eip = entry
	p.Regs.Esp = vm.USER_STACK_TOP
	p.Regs.Eflags = 0x200 // IF set

	if NewStdio != nil {
		p.Fds[0], p.Fds[1] = NewStdio(pid, tty)
	}
	if NewNetFd != nil {
		p.Fds[2] = NewNetFd(pid)
	}

	t.slots[pid] = p
	t.ready = append(t.ready, pid)
	t.ti.Notes[pid] = &p.Note
	p.Note.Alive = true
	if parent != defs.NoPid {
		t.waiters[pid] = make(chan int, 1)
	}
	return pid, 0
}

/// WaitHalt blocks the calling goroutine until child halts, returning
/// its status. It is the actual blocking primitive behind execute():
/// unlike a polling loop, the parent's goroutine parks on a channel
/// only the child's halt() ever sends to, so no busy work happens
/// while a child runs. Returns ok=false if child was never registered
/// as waitable (it was the root shell, or never existed).
func (t *table_t) WaitHalt(child defs.Pid_t) (status int, ok bool) {
	t.mu.Lock()
	ch, ok := t.waiters[child]
	t.mu.Unlock()
	if !ok {
		return 256, false
	}
	return <-ch, true
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

/// Halt tears down pid's PCB. If pid is a root shell (ParentPid ==
/// NoPid), its slot is reused to restart the same program rather than
/// freed: a login shell that exits respawns itself instead of leaving
/// its tty with no controlling process, matching the original
/// kernel's behavior of never letting the initial shell's pid die.
func (t *table_t) Halt(pid defs.Pid_t, status int) defs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halt(pid, status)
}

func (t *table_t) halt(pid defs.Pid_t, status int) defs.Err_t {
	p := t.get(pid)
	if p == nil {
		return -defs.ESRCH
	}
	for _, f := range p.Fds {
		if f != nil {
			fd.Close_panic(f)
		}
	}
	tty, name := p.Tty, p.Name
	p.As.Free()
	if p.argsLen > 0 {
		ArgsHeap.Free(p.argsAddr, p.argsLen)
	}
	delete(t.ti.Notes, pid)

	if p.ParentPid == defs.NoPid {
		fmt.Printf("proc: root shell on tty %v exited with %v, restarting\n", tty, status)
		t.slots[pid] = nil
		newpid, err := t.execute(name, ustr.MkUstr(), tty, defs.NoPid)
		if err != 0 {
			return err
		}
		if newpid != pid {
			panic("root shell did not reuse its own pcb slot")
		}
		return 0
	}

	p.Status = Zombie
	p.HaltCode = status
	parent := t.get(p.ParentPid)
	if parent != nil {
		parent.Accnt.Add(&p.Accnt)
	}
	if ch, ok := t.waiters[pid]; ok {
		ch <- status
	}
	t.slots[pid] = nil
	t.removeReady(pid)
	return 0
}

func (t *table_t) removeReady(pid defs.Pid_t) {
	for i, r := range t.ready {
		if r == pid {
			t.ready = append(t.ready[:i], t.ready[i+1:]...)
			return
		}
	}
}

/// Tick runs one scheduler tick: it charges the current process's
/// quantum, and if it has expired (or the process is no longer
/// runnable) picks the next ready PCB round-robin.
func (t *table_t) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.get(t.current)
	if cur != nil && cur.Status == Running {
		cur.quantum--
		if cur.quantum > 0 {
			return
		}
		cur.quantum = quantumTicks
		cur.Status = Runnable
		t.ready = append(t.ready, cur.Pid)
	}
	t.switchNext()
}

func (t *table_t) switchNext() {
	for len(t.ready) > 0 {
		pid := t.ready[0]
		t.ready = t.ready[1:]
		p := t.get(pid)
		if p == nil || p.Status == Zombie {
			continue
		}
		p.Status = Running
		t.current = pid
		return
	}
	t.current = defs.NoPid
}

/// Block marks pid as waiting for an event (a blocking read, a
/// sleep) and removes it from the ready queue, picking a new current
/// process immediately.
func (t *table_t) Block(pid defs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.get(pid)
	if p == nil {
		return
	}
	p.Status = Blocked
	if t.current == pid {
		t.switchNext()
	} else {
		t.removeReady(pid)
	}
}

/// Wake marks pid runnable again and enqueues it.
func (t *table_t) Wake(pid defs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wake(pid)
}

func (t *table_t) wake(pid defs.Pid_t) {
	p := t.get(pid)
	if p == nil || p.Status != Blocked {
		return
	}
	p.Status = Runnable
	t.ready = append(t.ready, pid)
}

/// Kill marks pid doomed and, if it is blocked, wakes it so the
/// pending signal can be delivered instead of the process staying
/// asleep forever. Used by sig.Send.
func (t *table_t) Kill(pid defs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.get(pid)
	if p == nil {
		return
	}
	p.Note.Lock()
	p.Note.Killed = true
	p.Note.Unlock()
	if p.Status == Blocked {
		t.wake(pid)
	}
}
