package tty

import "encoding/binary"
import "testing"
import "time"

import "defs"
import "fd"
import "fs"
import "mem"
import "proc"

// buildShellImage assembles a single-file disk image holding one
// minimal valid executable named "shell", in the layout fs.Load
// expects — mirroring the proc package's own test helper, since
// Switch's spawn-into-an-empty-tty path needs a real fs.Fs_t to
// execute() from rather than a mock.
func buildShellImage() []byte {
	const entsz = fs.MaxNameLen + 1 + 4
	image := make([]byte, defs.EntryOffset+4+16)
	copy(image[:4], defs.ElfMagic[:])
	binary.LittleEndian.PutUint32(image[defs.EntryOffset:], 0x08048100)

	boot := make([]byte, fs.BlockSize)
	binary.LittleEndian.PutUint32(boot[0:4], 1)
	binary.LittleEndian.PutUint32(boot[4:8], 1)
	binary.LittleEndian.PutUint32(boot[8:12], 1)
	off := 12
	copy(boot[off:off+fs.MaxNameLen], []byte(ShellName))
	boot[off+fs.MaxNameLen] = byte(defs.D_REGULAR)
	binary.LittleEndian.PutUint32(boot[off+fs.MaxNameLen+1:off+entsz], 0)

	inode := make([]byte, fs.BlockSize)
	binary.LittleEndian.PutUint32(inode[0:4], uint32(len(image)))
	binary.LittleEndian.PutUint32(inode[4:8], 0)

	blk := make([]byte, fs.BlockSize)
	copy(blk, image)

	img := append([]byte{}, boot...)
	img = append(img, inode...)
	img = append(img, blk...)
	return img
}

func setupSwitchTest(t *testing.T) {
	t.Helper()
	mem.Phys_init(64)
	mem.Supers_init(4)
	mem.Vidmem_init()
	mem.Dmap_init()

	fsys, err := fs.Load(buildShellImage())
	if err != 0 {
		t.Fatalf("fs.Load: %v", err)
	}
	proc.Fsys = fsys
	proc.NewStdio = nil
	proc.NewNetFd = nil
}

func TestLineCommit(t *testing.T) {
	Init(4)
	term := Ttys[0]
	for _, c := range []byte("echo hi") {
		if committed := term.Input(c); committed {
			t.Fatalf("unexpected commit on %q", c)
		}
	}
	if term.HasLine() {
		t.Fatal("line should not be ready before Enter")
	}
	if committed := term.Input(Enter); !committed {
		t.Fatal("expected Enter to commit the line")
	}
	line, ok := term.ReadLine()
	if !ok {
		t.Fatal("expected a committed line")
	}
	if string(line) != "echo hi\n" {
		t.Fatalf("line = %q, want %q", line, "echo hi\n")
	}
}

func TestBackspace(t *testing.T) {
	Init(1)
	term := Ttys[0]
	for _, c := range []byte("abc") {
		term.Input(c)
	}
	term.Input(Backspace)
	term.Input(Enter)
	line, _ := term.ReadLine()
	if string(line) != "ab\n" {
		t.Fatalf("line = %q, want %q", line, "ab\n")
	}
}

func TestWaitLineBlocksUntilInput(t *testing.T) {
	Init(1)
	term := Ttys[0]
	got := make(chan string, 1)
	go func() {
		got <- string(term.WaitLine())
	}()

	select {
	case <-got:
		t.Fatal("WaitLine returned before any input was committed")
	case <-time.After(20 * time.Millisecond):
	}

	for _, c := range []byte("hi") {
		term.Input(c)
	}
	term.Input(Enter)

	select {
	case line := <-got:
		if line != "hi\n" {
			t.Fatalf("line = %q, want %q", line, "hi\n")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitLine never returned after Enter")
	}
}

func TestCtrlLRedrawsPendingLine(t *testing.T) {
	Init(1)
	term := Ttys[0]
	for _, c := range []byte("partial") {
		term.Input(c)
	}
	before := len(term.Scrollback())
	term.Input(CtrlL)
	after := term.Scrollback()
	if len(after) <= before {
		t.Fatal("expected Ctrl+L to append a redraw to scrollback")
	}
	last := after[len(after)-1]
	if string(last) != "partial" {
		t.Fatalf("redrawn line = %q, want %q", last, "partial")
	}
}

func TestSwitchSpawnsShellIntoEmptyTty(t *testing.T) {
	setupSwitchTest(t)
	proc.NewStdio = func(pid defs.Pid_t, ttyIdx int) (stdin, stdout *fd.Fd_t) {
		Ttys[ttyIdx].Fg = pid
		return nil, nil
	}
	Init(2)

	if ok := Switch(1); !ok {
		t.Fatal("Switch to a valid tty returned false")
	}
	if Active() != 1 {
		t.Fatalf("Active() = %v, want 1", Active())
	}
	if Ttys[1].Fg == defs.NoPid {
		t.Fatal("expected Switch to have spawned a shell as tty 1's foreground process")
	}
}

func TestSwitchPreservesBackgroundedScreenContent(t *testing.T) {
	setupSwitchTest(t)
	proc.NewStdio = nil
	Init(3)

	screen := mem.Physmem.Dmap8(mem.Vid_pa)
	screen[0] = 'A'
	screen[1] = 0x07

	if ok := Switch(1); !ok {
		t.Fatal("Switch returned false")
	}
	if ok := Switch(0); !ok {
		t.Fatal("Switch back returned false")
	}
	if screen[0] != 'A' || screen[1] != 0x07 {
		t.Fatalf("screen contents not restored after switching back: %v %v", screen[0], screen[1])
	}
}

func TestSwitchRejectsOutOfRangeTty(t *testing.T) {
	Init(2)
	if Switch(5) {
		t.Fatal("Switch to an out-of-range tty should return false")
	}
}
