// Package syscall is the int 0x80 dispatch table: it validates every
// user-supplied pointer and fd before touching kernel state, then
// hands off to the collaborator that owns the operation (proc for
// halt/execute, fd/devfs for the file descriptor calls, vm for
// vidmap, proc.Proc_t for the signal calls). Grounded on the
// dispatch-table style of justanotherdot-biscuit's syscall numbering
// and on the original kernel's syscall_linkage.S argument convention
// (three arguments in fixed registers, return value in the
// accumulator, a negative return mapped to -1 for user code).
package syscall

import "defs"
import "devfs"
import "fd"
import "fs"
import "proc"
import "tty"
import "ustr"
import "vm"

/// Dispatch runs one syscall on behalf of p and returns the value to
/// place in the accumulator register. num and the three argument
/// registers come from the trap frame; Dispatch never inspects them
/// beyond what the specific call needs.
func Dispatch(p *proc.Proc_t, num int, a1, a2, a3 uint32) int32 {
	var ret defs.Err_t
	var val int
	switch num {
	case defs.SYS_HALT:
		proc.Table.Halt(p.Pid, int(a1&0xff))
		return 0

	case defs.SYS_EXECUTE:
		val, ret = sysExecute(p, a1)

	case defs.SYS_READ:
		val, ret = sysReadWrite(p, a1, a2, a3, false)

	case defs.SYS_WRITE:
		val, ret = sysReadWrite(p, a1, a2, a3, true)

	case defs.SYS_OPEN:
		val, ret = sysOpen(p, a1)

	case defs.SYS_CLOSE:
		ret = sysClose(p, a1)

	case defs.SYS_GETARGS:
		ret = sysGetargs(p, a1, a2)

	case defs.SYS_VIDMAP:
		ret = sysVidmap(p, a1)

	case defs.SYS_SET_HANDLER:
		ret = p.SetHandler(defs.Signum_t(a1), a2)

	case defs.SYS_SIGRETURN:
		ret = p.Sigreturn(defs.Signum_t(a1))
		if ret == 0 {
			return int32(p.Regs.Eax)
		}

	case defs.SYS_ALLOCATE_WINDOW:
		val, ret = sysAllocateWindow(p, a1, a2, a3)

	case defs.SYS_UPDATE_WINDOW:
		ret = sysUpdateWindow(p, a1)

	default:
		return -1
	}

	if ret != 0 {
		return -1
	}
	return int32(val)
}

func sysExecute(p *proc.Proc_t, ustrva uint32) (int, defs.Err_t) {
	full, err := p.As.Userstr(ustrva, defs.MaxArgs)
	if err != 0 {
		return 0, err
	}
	idx := full.IndexByte(' ')
	var name, args ustr.Ustr
	if idx < 0 {
		name, args = full, ustr.MkUstr()
	} else {
		name, args = full[:idx], full[idx+1:]
	}

	child, err := proc.Table.Execute(name, args, p.Tty, p.Pid)
	if err != 0 {
		return -1, 0 // launch failure: -1, not a fault
	}

	proc.Table.Block(p.Pid)
	status, _ := proc.Table.WaitHalt(child)
	proc.Table.Wake(p.Pid)
	return status, 0
}

func sysReadWrite(p *proc.Proc_t, fdn, buf, n uint32, write bool) (int, defs.Err_t) {
	f, err := checkedFd(p, fdn)
	if err != 0 {
		return 0, err
	}
	var ub vm.Userbuf_t
	ub.Ub_init(p.As, buf, int(n))
	if write {
		if f.Perms&fd.FD_WRITE == 0 {
			return 0, -defs.EINVAL
		}
		return f.Fops.Write(&ub)
	}
	if f.Perms&fd.FD_READ == 0 {
		return 0, -defs.EINVAL
	}
	return f.Fops.Read(&ub)
}

func sysOpen(p *proc.Proc_t, nameva uint32) (int, defs.Err_t) {
	name, err := p.As.Userstr(nameva, fs.MaxNameLen)
	if err != 0 {
		return 0, err
	}
	dent, err := proc.Fsys.Read_dentry_by_name(name)
	if err != 0 {
		return 0, err
	}

	slot := -1
	for i := 2; i < len(p.Fds); i++ {
		if p.Fds[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, -defs.EMFILE
	}

	nfd := &fd.Fd_t{Perms: fd.FD_READ | fd.FD_WRITE}
	switch dent.Ftype {
	case defs.D_RTC:
		nfd.Fops = devfs.OpenRtc()
	case defs.D_DIRECTORY:
		nfd.Fops = devfs.OpenDirfile(proc.Fsys)
	case defs.D_REGULAR:
		nfd.Fops = devfs.OpenRegfile(proc.Fsys, dent.InodeNo)
	default:
		return 0, -defs.EINVAL
	}
	p.Fds[slot] = nfd
	return slot, 0
}

func sysClose(p *proc.Proc_t, fdn uint32) defs.Err_t {
	if fdn == 0 || fdn == 1 {
		return -defs.EINVAL
	}
	f, err := checkedFd(p, fdn)
	if err != 0 {
		return err
	}
	fd.Close_panic(f)
	p.Fds[fdn] = nil
	return 0
}

func sysGetargs(p *proc.Proc_t, bufva, n uint32) defs.Err_t {
	src := p.Args
	if len(src) >= int(n) {
		return -defs.EINVAL
	}
	buf := make([]byte, len(src)+1)
	copy(buf, src)
	return p.As.K2user(buf, bufva)
}

func sysVidmap(p *proc.Proc_t, outva uint32) defs.Err_t {
	uva := p.As.Vidmap()
	return p.As.Userwriten(outva, 4, int(uva))
}

// sysAllocateWindow reads a {x,y,w,h int32} rectangle from user
// memory at rectva and writes the allocated window's id to the
// 4-byte out-param at idva.
func sysAllocateWindow(p *proc.Proc_t, rectva, idva, _ uint32) (int, defs.Err_t) {
	vals := make([]int, 4)
	for i := range vals {
		v, err := p.As.Userreadn(rectva+uint32(i*4), 4)
		if err != 0 {
			return 0, err
		}
		vals[i] = v
	}
	t := tty.Ttys[p.Tty]
	id, ok := t.AllocateWindow(vals[0], vals[1], vals[2], vals[3])
	if !ok {
		return 0, -defs.EINVAL
	}
	if err := p.As.Userwriten(idva, 4, id); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysUpdateWindow(p *proc.Proc_t, idraw uint32) defs.Err_t {
	t := tty.Ttys[p.Tty]
	if !t.UpdateWindow(int(idraw)) {
		return -defs.EINVAL
	}
	return 0
}

func checkedFd(p *proc.Proc_t, fdn uint32) (*fd.Fd_t, defs.Err_t) {
	if int(fdn) < 0 || int(fdn) >= len(p.Fds) {
		return nil, -defs.EBADF
	}
	f := p.Fds[fdn]
	if f == nil {
		return nil, -defs.EBADF
	}
	return f, 0
}
