package vm

import "defs"

// Userbuf_t assists reading and writing a contiguous run of user
// memory through the fdops.Userio_i interface, so syscalls like read
// and write can hand the user buffer straight to a device's copy
// routine (Circbuf_t.Copyin/Copyout) without the device package
// needing to know about address spaces.
//
// Dropped from the teacher's version: Useriovec_t (no readv/writev in
// this kernel) and the res/bounds heap-accounting calls in the copy
// loop, which belonged to a subsystem this kernel does not have.

/// Userbuf_t implements fdops.Userio_i over one user virtual address
/// range.
type Userbuf_t struct {
	userva uint32
	len    int
	off    int
	as     *Vm_t
}

/// Ub_init initialises the buffer for the given address space.
func (ub *Userbuf_t) Ub_init(as *Vm_t, uva uint32, length int) {
	if length < 0 {
		panic("negative length")
	}
	ub.userva = uva
	ub.len = length
	ub.off = 0
	ub.as = as
}

/// Remain returns the number of unread bytes left in the buffer.
func (ub *Userbuf_t) Remain() int {
	return ub.len - ub.off
}

/// Totalsz reports the total size of the buffer in bytes.
func (ub *Userbuf_t) Totalsz() int {
	return ub.len
}

/// Uioread copies data from user memory into dst.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return ub._tx(dst, false)
}

/// Uiowrite copies data from src into user memory.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return ub._tx(src, true)
}

func (ub *Userbuf_t) _tx(buf []uint8, write bool) (int, defs.Err_t) {
	n := len(buf)
	if rem := ub.Remain(); n > rem {
		n = rem
	}
	if n <= 0 {
		return 0, 0
	}
	va := ub.userva + uint32(ub.off)
	var b []byte
	var err defs.Err_t
	if write {
		b, err = ub.as.Userdmap8w(va, n)
	} else {
		b, err = ub.as.Userdmap8r(va, n)
	}
	if err != 0 {
		return 0, err
	}
	var c int
	if write {
		c = copy(b, buf[:n])
	} else {
		c = copy(buf[:n], b)
	}
	ub.off += c
	return c, 0
}

/// Fakeubuf_t implements the same interface as Userbuf_t but operates
/// on a kernel buffer, used when the kernel needs to treat its own
/// memory (PCB argument strings, kernel-formatted rusage blocks) like
/// a user buffer.
type Fakeubuf_t struct {
	fbuf []uint8
	len  int
}

/// Fake_init sets up the fake buffer with the provided slice.
func (fb *Fakeubuf_t) Fake_init(buf []uint8) {
	fb.fbuf = buf
	fb.len = len(fb.fbuf)
}

/// Remain returns the number of bytes left in the fake buffer.
func (fb *Fakeubuf_t) Remain() int {
	return len(fb.fbuf)
}

/// Totalsz returns the total length of the fake buffer.
func (fb *Fakeubuf_t) Totalsz() int {
	return fb.len
}

func (fb *Fakeubuf_t) _tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.fbuf, buf)
	} else {
		c = copy(buf, fb.fbuf)
	}
	fb.fbuf = fb.fbuf[c:]
	return c, 0
}

/// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	return fb._tx(dst, false)
}

/// Uiowrite copies src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	return fb._tx(src, true)
}
