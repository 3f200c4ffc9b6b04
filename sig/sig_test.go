package sig

import "testing"

import "defs"

func TestDeliverAndDecode(t *testing.T) {
	saved := Regs_t{
		Eax: 0xaaaaaaaa, Ebx: 1, Ecx: 2, Edx: 3,
		Esi: 4, Edi: 5, Ebp: 6,
		Eip: 0x08048100, Esp: 0x083ffff0, Eflags: 0x200,
	}
	handler := uint32(0x08048200)

	newEsp, newEip, frame := Deliver(saved, defs.SIGNAL_ALARM, handler)

	if newEip != handler {
		t.Fatalf("newEip = %#x, want %#x", newEip, handler)
	}
	if newEsp != saved.Esp-uint32(FrameSize) {
		t.Fatalf("newEsp = %#x, want %#x", newEsp, saved.Esp-uint32(FrameSize))
	}
	if len(frame) != FrameSize {
		t.Fatalf("frame length = %v, want %v", len(frame), FrameSize)
	}

	f := Decode(frame)
	if f.Saved != saved {
		t.Errorf("Saved = %+v, want %+v", f.Saved, saved)
	}
	if f.Signum != uint32(defs.SIGNAL_ALARM) {
		t.Errorf("Signum = %v, want %v", f.Signum, defs.SIGNAL_ALARM)
	}
}

func TestTrampolineReturnsIntoItself(t *testing.T) {
	saved := Regs_t{Esp: 0x1000}
	newEsp, _, frame := Deliver(saved, defs.SIGNAL_DIV_ZERO, 0x500)
	retaddr := uint32(frame[0]) | uint32(frame[1])<<8 | uint32(frame[2])<<16 | uint32(frame[3])<<24
	if want := newEsp + offTrampoline; retaddr != want {
		t.Fatalf("return address = %#x, want %#x", retaddr, want)
	}
}

func TestDeliverPreservesEaxForSigreturn(t *testing.T) {
	saved := Regs_t{Eax: 0x12345678, Esp: 0x2000, Eip: 0x08048000}
	_, _, frame := Deliver(saved, defs.SIGNAL_INTERRUPT, 0x600)
	f := Decode(frame)
	if f.Saved.Eax != saved.Eax {
		t.Fatalf("decoded Eax = %#x, want %#x", f.Saved.Eax, saved.Eax)
	}
}
