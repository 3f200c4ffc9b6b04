package devfs

import "defs"
import "fd"
import "proc"
import "tty"

func init() {
	proc.NewStdio = func(pid defs.Pid_t, ttyIdx int) (stdin, stdout *fd.Fd_t) {
		t := tty.Ttys[ttyIdx]
		t.Fg = pid
		in := &fd.Fd_t{Fops: &Stdin_t{Pid: pid, Tty: t}, Perms: fd.FD_READ}
		out := &fd.Fd_t{Fops: &Stdout_t{Tty: t}, Perms: fd.FD_WRITE}
		return in, out
	}
}
