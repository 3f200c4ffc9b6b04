// Package tty multiplexes the keyboard and the console among the
// four TTYs the kernel switches between (three text consoles and one
// graphics console), each with its own output back-buffer so input
// echoed to a background tty doesn't need a real screen to land on.
//
// Grounded on the original kernel's keyboard.c and graphics.c for the
// line-discipline behavior (echo, backspace, a committed line handed
// to the foreground process's next read), and on the teacher's
// cons_t/kbd_daemon in justanotherdot-biscuit's kernel/main.go for
// the shape of a line-buffered console reader built on Circbuf_t.
//
// Supplemented from the original source (not present in the
// distilled spec): Ctrl+L does not just clear the screen, it also
// redraws whatever of the current line the user had typed so far, so
// a cleared screen doesn't lose in-progress input.
package tty

import "sync"

import "defs"
import "mem"
import "proc"
import "ustr"

const (
	CtrlL     = 0x0c
	Backspace = 0x08
	Enter     = '\n'
)

// NumTextTtys is the number of text-mode consoles; Alt+1..Alt+3 switch
// among them. The remaining configured tty (index NumTextTtys) is the
// graphics console, which Ctrl+C's active-tty guard leaves alone.
const NumTextTtys = 3

// ShellName is the program tty_switch spawns into a tty that has no
// foreground process yet, matching the original kernel's
// process_execute("shell", ...) calls at every console switch.
const ShellName = "shell"

/// Tty_t is one virtual terminal's line discipline and scrollback.
type Tty_t struct {
	Idx int

	mu         sync.Mutex
	cond       *sync.Cond
	scrollback [][]byte
	lineBuf    []byte
	pending    [][]byte

	windows      []*Window_t
	nextWindowID int

	Fg defs.Pid_t

	// backbuf holds this tty's screen contents while some other tty
	// owns the physical framebuffer. backPa is a private physical
	// frame a backgrounded foreground process's vid_mem window gets
	// remapped to, so its writes keep landing somewhere instead of
	// the screen another tty now owns; it is allocated lazily, on
	// this tty's first switch-away, so Init alone never needs a
	// physical memory allocator to be initialized.
	backbuf  []byte
	backPa   mem.Pa_t
	backPaOk bool
}

/// Ttys holds every configured tty, indexed by number.
var Ttys []*Tty_t

// switchMu serializes tty_switch against itself; activeIdx is the tty
// currently receiving keyboard input and owning the framebuffer.
var switchMu sync.Mutex
var activeIdx int

/// Init allocates n ttys, numbered 0..n-1. tty 0 starts active.
func Init(n int) {
	Ttys = make([]*Tty_t, n)
	for i := range Ttys {
		t := &Tty_t{Idx: i, Fg: defs.NoPid}
		t.cond = sync.NewCond(&t.mu)
		Ttys[i] = t
	}
	activeIdx = 0
}

/// Active returns the index of the tty currently on-screen.
func Active() int {
	switchMu.Lock()
	defer switchMu.Unlock()
	return activeIdx
}

/// Switch implements tty_switch: it swaps the physical framebuffer's
/// contents with tty n's back-buffer, remaps the outgoing tty's
/// foreground process's vid_mem window to that back-buffer so it keeps
/// a place to draw, restores the incoming tty's foreground process's
/// vid_mem to the real screen, and spawns a shell if tty n has no
/// foreground process at all. Returns false if n is out of range.
func Switch(n int) bool {
	switchMu.Lock()
	defer switchMu.Unlock()
	if n < 0 || n >= len(Ttys) {
		return false
	}
	if n == activeIdx {
		return true
	}
	from, to := Ttys[activeIdx], Ttys[n]

	screen := mem.Physmem.Dmap8(mem.Vid_pa)[:vidmapWidth*vidmapHeight*2]
	saved := append([]byte{}, screen...)
	if len(to.backbuf) > 0 {
		copy(screen, to.backbuf)
	} else {
		for i := range screen {
			screen[i] = 0
		}
	}
	from.backbuf = saved

	if from.Fg != defs.NoPid {
		if p := proc.Table.Get(from.Fg); p != nil {
			pa := from.framePa()
			copy(mem.Physmem.Dmap8(pa)[:vidmapWidth*vidmapHeight*2], saved)
			p.As.RemapVideo(pa)
		}
	}
	if to.Fg != defs.NoPid {
		if p := proc.Table.Get(to.Fg); p != nil {
			p.As.Vidmap()
		}
	} else {
		proc.Table.Execute(ustr.Ustr(ShellName), ustr.MkUstr(), n, defs.NoPid)
	}

	activeIdx = n
	return true
}

// framePa returns this tty's private back-buffer frame, allocating it
// on first use.
func (t *Tty_t) framePa() mem.Pa_t {
	if !t.backPaOk {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			panic("oom allocating tty back-buffer frame")
		}
		t.backPa = pa
		t.backPaOk = true
	}
	return t.backPa
}

/// Input processes one keystroke typed while this tty is active: it
/// updates the line buffer and scrollback and, on Enter, commits the
/// completed line so a blocked read against this tty can be woken.
// Returns true when a line was just committed.
func (t *Tty_t) Input(c byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch c {
	case Enter:
		line := append(append([]byte{}, t.lineBuf...), '\n')
		t.pending = append(t.pending, line)
		t.echo([]byte{'\n'})
		t.lineBuf = nil
		t.cond.Broadcast()
		return true
	case Backspace:
		if len(t.lineBuf) > 0 {
			t.lineBuf = t.lineBuf[:len(t.lineBuf)-1]
			t.echo([]byte{Backspace, ' ', Backspace})
		}
		return false
	case CtrlL:
		t.redraw()
		return false
	default:
		t.lineBuf = append(t.lineBuf, c)
		t.echo([]byte{c})
		return false
	}
}

// echo appends bytes to this tty's output scrollback, as if the
// keystroke were drawn to the screen.
func (t *Tty_t) echo(b []byte) {
	t.scrollback = append(t.scrollback, append([]byte{}, b...))
}

// redraw reprints the in-progress line after a Ctrl+L clears the
// visible screen, so the user doesn't lose what they had typed.
func (t *Tty_t) redraw() {
	t.scrollback = append(t.scrollback, []byte{CtrlL})
	if len(t.lineBuf) > 0 {
		t.scrollback = append(t.scrollback, append([]byte{}, t.lineBuf...))
	}
}

/// HasLine reports whether a committed line is ready to be read.
func (t *Tty_t) HasLine() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

/// ReadLine pops the oldest committed line, or returns ok=false if
/// none is ready yet; callers wanting to block until a line arrives
/// should use WaitLine instead.
func (t *Tty_t) ReadLine() (line []byte, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.popLine()
}

func (t *Tty_t) popLine() (line []byte, ok bool) {
	if len(t.pending) == 0 {
		return nil, false
	}
	line = t.pending[0]
	t.pending = t.pending[1:]
	return line, true
}

/// WaitLine blocks the calling goroutine until a line has been
/// committed, then pops and returns it. This is the console fd's
/// actual blocking primitive: the goroutine servicing a process's
/// read() syscall parks here exactly as that process would park on
/// the scheduler's blocked list, woken the moment Enter lands on this
/// tty from any source (the keyboard IRQ path in the common case, or
/// a test driving Input directly).
func (t *Tty_t) WaitLine() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.pending) == 0 {
		t.cond.Wait()
	}
	line, _ := t.popLine()
	return line
}

/// Write appends program output to the tty's scrollback, implementing
/// a write() to the console file descriptor.
func (t *Tty_t) Write(b []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollback = append(t.scrollback, append([]byte{}, b...))
}

/// Scrollback returns every byte range written to this tty so far, in
/// order, for tests and for a future real screen renderer to draw.
func (t *Tty_t) Scrollback() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte{}, t.scrollback...)
}

// vidmapWidth/vidmapHeight describe the simulated VGA text mode this
// kernel's video memory region represents: 80x25 characters, 2 bytes
// (glyph, attribute) each, fitting comfortably in the one 4 KiB page
// mem.VIDMAP_UVA maps.
const (
	vidmapWidth  = 80
	vidmapHeight = 25
)

func init() {
	if vidmapWidth*vidmapHeight*2 > mem.PGSIZE {
		panic("vga text buffer does not fit in one page")
	}
}
