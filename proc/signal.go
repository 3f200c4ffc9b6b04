package proc

import "defs"
import "sig"

/// SetHandler installs or clears a process's handler for signum,
/// implementing the set_handler syscall. addr of 0 restores the
/// default action.
func (p *Proc_t) SetHandler(signum defs.Signum_t, addr uint32) defs.Err_t {
	if signum < 0 || int(signum) >= defs.NUM_SIGNALS {
		return -defs.EINVAL
	}
	p.Sighandlers[signum] = addr
	return 0
}

/// Raise delivers signum to p. If p has no installed handler, the
/// default action runs instead: div-zero and segfault halt the
/// process with DefaultHaltStatus, interrupt halts it with status 0,
/// alarm and I/O are ignored. A signal already being handled is left
/// pending until sigreturn clears Sigstatus back to SigOpen, so
/// handlers never nest.
func (p *Proc_t) Raise(signum defs.Signum_t, tbl *table_t) defs.Err_t {
	if signum < 0 || int(signum) >= defs.NUM_SIGNALS {
		return -defs.EINVAL
	}
	handler := p.Sighandlers[signum]
	if handler == 0 {
		switch signum {
		case defs.SIGNAL_DIV_ZERO, defs.SIGNAL_SEGFAULT:
			return tbl.Halt(p.Pid, defs.DefaultHaltStatus)
		case defs.SIGNAL_INTERRUPT:
			return tbl.Halt(p.Pid, 0)
		default:
			return 0
		}
	}

	if p.Sigstatus[signum] == defs.SigHandling {
		p.Sigstatus[signum] = defs.SigPending
		return 0
	}

	saved := sig.Regs_t{
		Eax: p.Regs.Eax, Ebx: p.Regs.Ebx, Ecx: p.Regs.Ecx, Edx: p.Regs.Edx,
		Esi: p.Regs.Esi, Edi: p.Regs.Edi, Ebp: p.Regs.Ebp,
		Eip: p.Regs.Eip, Esp: p.Regs.Esp, Eflags: p.Regs.Eflags,
	}
	newEsp, newEip, frame := sig.Deliver(saved, signum, handler)
	if err := p.As.K2user(frame, newEsp); err != 0 {
		return tbl.Halt(p.Pid, defs.DefaultHaltStatus)
	}
	p.Regs.Esp = newEsp
	p.Regs.Eip = newEip
	p.Sigstatus[signum] = defs.SigHandling
	return 0
}

/// Sigreturn restores the context a signal handler interrupted,
/// reading the frame sigreturn itself was trampolined in on top of,
/// implementing the sigreturn syscall.
func (p *Proc_t) Sigreturn(signum defs.Signum_t) defs.Err_t {
	if signum < 0 || int(signum) >= defs.NUM_SIGNALS {
		return -defs.EINVAL
	}
	// the trampoline's ret popped its own return address, so esp now
	// points 4 bytes into the frame Raise wrote.
	base := p.Regs.Esp - 4
	buf := make([]byte, sigFrameSize())
	if err := p.As.User2k(buf, base); err != 0 {
		return err
	}
	f := sig.Decode(buf)
	p.Regs.Eax = f.Saved.Eax
	p.Regs.Ebx = f.Saved.Ebx
	p.Regs.Ecx = f.Saved.Ecx
	p.Regs.Edx = f.Saved.Edx
	p.Regs.Esi = f.Saved.Esi
	p.Regs.Edi = f.Saved.Edi
	p.Regs.Ebp = f.Saved.Ebp
	p.Regs.Eip = f.Saved.Eip
	p.Regs.Esp = f.Saved.Esp
	p.Regs.Eflags = f.Saved.Eflags
	p.Sigstatus[signum] = defs.SigOpen
	return 0
}

func sigFrameSize() int {
	return sig.FrameSize
}
