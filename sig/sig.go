// Package sig computes the user-stack rewrite a signal delivery
// performs: the saved register frame pushed below the current stack
// pointer, and the trampoline return address installed so that when
// the handler returns, control lands back in the kernel's sigreturn
// syscall rather than at some unrelated address. The kernel-mode side
// of delivery (picking which process to deliver to, actually writing
// the bytes into the target address space) lives in proc, which
// calls into this package for the pure, testable arithmetic.
//
// Grounded on the original kernel's signals.c, which performs the
// same stack-rewrite-plus-trampoline trick in the C equivalent: the
// handler is invoked with its return address pointing at a few bytes
// of trampoline code that re-enters the kernel via the sigreturn
// syscall instead of returning to whatever the process was doing.
// signals.c pushes the *entire* saved hardware context (all of
// pushal's eight registers plus eip/esp/eflags), not just the three
// fields a trampoline strictly needs to find its way back, so a
// handler that clobbers eax and returns still resumes the interrupted
// computation exactly where it left off.
//
// The REDESIGN FLAG resolved here: division by zero now always
// raises SIGNAL_DIV_ZERO and is delivered like any other signal
// (killing the process by the default halt status when unhandled),
// rather than being silently ignored.
package sig

import "encoding/binary"

import "defs"

// trampolineCode is "mov eax, SYS_SIGRETURN; int 0x80", the minimal
// sequence needed to re-enter the kernel after a handler returns.
// 0xb8 is MOV EAX, imm32; 0xcd 0x80 is INT 0x80.
var trampolineCode = []byte{
	0xb8, byte(defs.SYS_SIGRETURN), 0x00, 0x00, 0x00,
	0xcd, 0x80,
}

// Frame layout, low address to high: a return address (pointing at
// the trampoline bytes at the end of this same frame, so the handler
// "returns" straight into it), the entire interrupted register file,
// the signal number, and finally the trampoline code itself.
const (
	offRetAddr    = 0
	offEax        = 4
	offEbx        = 8
	offEcx        = 12
	offEdx        = 16
	offEsi        = 20
	offEdi        = 24
	offEbp        = 28
	offEip        = 32
	offEsp        = 36
	offEflags     = 40
	offSignum     = 44
	offTrampoline = 48
)

/// FrameSize is the number of bytes Deliver pushes below the
/// interrupted stack pointer.
const FrameSize = offTrampoline + len(trampolineCode)

/// Regs_t is the interrupted process's saved hardware context: the
/// full general-purpose register file plus the instruction pointer,
/// stack pointer, and flags word, mirroring proc.Regs_t's shape. sig
/// cannot import proc (proc already imports sig), so it keeps its own
/// copy of the same fields rather than the same type.
type Regs_t struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Ebp      uint32
	Eip, Esp, Eflags   uint32
}

/// Frame_t is a delivered signal's saved context, as pushed onto the
/// interrupted process's user stack.
type Frame_t struct {
	Saved  Regs_t
	Signum uint32
}

/// Encode serializes a Frame_t, its trampoline return address, and
/// the trampoline code into the bytes Deliver writes to the user
/// stack. base is the user-virtual address the frame will be written
/// at, needed to compute the return address it embeds.
func (f *Frame_t) Encode(base uint32) []byte {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(buf[offRetAddr:], base+offTrampoline)
	binary.LittleEndian.PutUint32(buf[offEax:], f.Saved.Eax)
	binary.LittleEndian.PutUint32(buf[offEbx:], f.Saved.Ebx)
	binary.LittleEndian.PutUint32(buf[offEcx:], f.Saved.Ecx)
	binary.LittleEndian.PutUint32(buf[offEdx:], f.Saved.Edx)
	binary.LittleEndian.PutUint32(buf[offEsi:], f.Saved.Esi)
	binary.LittleEndian.PutUint32(buf[offEdi:], f.Saved.Edi)
	binary.LittleEndian.PutUint32(buf[offEbp:], f.Saved.Ebp)
	binary.LittleEndian.PutUint32(buf[offEip:], f.Saved.Eip)
	binary.LittleEndian.PutUint32(buf[offEsp:], f.Saved.Esp)
	binary.LittleEndian.PutUint32(buf[offEflags:], f.Saved.Eflags)
	binary.LittleEndian.PutUint32(buf[offSignum:], f.Signum)
	copy(buf[offTrampoline:], trampolineCode)
	return buf
}

/// Decode parses a previously-encoded frame back out of raw bytes,
/// used by sigreturn to restore the interrupted context.
func Decode(buf []byte) Frame_t {
	var f Frame_t
	f.Saved.Eax = binary.LittleEndian.Uint32(buf[offEax:])
	f.Saved.Ebx = binary.LittleEndian.Uint32(buf[offEbx:])
	f.Saved.Ecx = binary.LittleEndian.Uint32(buf[offEcx:])
	f.Saved.Edx = binary.LittleEndian.Uint32(buf[offEdx:])
	f.Saved.Esi = binary.LittleEndian.Uint32(buf[offEsi:])
	f.Saved.Edi = binary.LittleEndian.Uint32(buf[offEdi:])
	f.Saved.Ebp = binary.LittleEndian.Uint32(buf[offEbp:])
	f.Saved.Eip = binary.LittleEndian.Uint32(buf[offEip:])
	f.Saved.Esp = binary.LittleEndian.Uint32(buf[offEsp:])
	f.Saved.Eflags = binary.LittleEndian.Uint32(buf[offEflags:])
	f.Signum = binary.LittleEndian.Uint32(buf[offSignum:])
	return f
}

/// Deliver computes the new stack pointer, instruction pointer, and
/// frame bytes for entering handler with the interrupted context
/// saved below the new stack pointer.
func Deliver(saved Regs_t, signum defs.Signum_t, handler uint32) (newEsp, newEip uint32, frame []byte) {
	newEsp = saved.Esp - uint32(FrameSize)
	f := Frame_t{Saved: saved, Signum: uint32(signum)}
	return newEsp, handler, f.Encode(newEsp)
}
