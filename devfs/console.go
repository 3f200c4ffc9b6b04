package devfs

import "defs"
import "fdops"
import "proc"
import "tty"

/// Stdin_t implements fdops.Fdops_i for the read-only console input
/// descriptor every process is born with: a line-buffered read
/// against its tty, blocking the calling process (in the scheduler's
/// bookkeeping) until a full line has been committed.
type Stdin_t struct {
	Pid defs.Pid_t
	Tty *tty.Tty_t
}

/// Read blocks until Tty commits a line, then copies as much of it as
/// dst has room for. Matches read(0, buf, n) returning characters up
/// to and including the newline, with any remainder available on the
/// next call... except this kernel hands back one full line per
/// read, the same simplification the original kernel's terminal_read
/// makes (it copies up to n bytes of the buffered line and drops the
/// rest, rather than keeping a sub-line cursor).
func (s *Stdin_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	proc.Table.Block(s.Pid)
	line := s.Tty.WaitLine()
	proc.Table.Wake(s.Pid)
	n := len(line)
	if n > dst.Remain() {
		n = dst.Remain()
	}
	c, err := dst.Uiowrite(line[:n])
	if err != 0 {
		return 0, err
	}
	return c, 0
}

/// Write always fails: stdin is read-only, matching the original
/// kernel's explicit rejection of write(0, ...).
func (s *Stdin_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}

/// Close is a no-op: the tty outlives any one process's stdin fd.
func (s *Stdin_t) Close() defs.Err_t {
	return 0
}

/// Reopen is a no-op: dup() shares the same tty and pid.
func (s *Stdin_t) Reopen() defs.Err_t {
	return 0
}

/// Stdout_t implements fdops.Fdops_i for the write-only console
/// output descriptor every process is born with.
type Stdout_t struct {
	Tty *tty.Tty_t
}

/// Read always fails: stdout is write-only.
func (s *Stdout_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}

/// Write copies src's bytes to the tty's scrollback.
func (s *Stdout_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	s.Tty.Write(buf[:n])
	return n, 0
}

/// Close is a no-op.
func (s *Stdout_t) Close() defs.Err_t {
	return 0
}

/// Reopen is a no-op.
func (s *Stdout_t) Reopen() defs.Err_t {
	return 0
}
