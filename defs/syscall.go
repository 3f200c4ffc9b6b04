package defs

// Syscall numbers, invoked via software interrupt 0x80 with the number
// in the accumulator register.
const (
	SYS_HALT            = 1
	SYS_EXECUTE         = 2
	SYS_READ            = 3
	SYS_WRITE           = 4
	SYS_OPEN            = 5
	SYS_CLOSE           = 6
	SYS_GETARGS         = 7
	SYS_VIDMAP          = 8
	SYS_SET_HANDLER     = 9
	SYS_SIGRETURN       = 10
	SYS_ALLOCATE_WINDOW = 11
	SYS_UPDATE_WINDOW   = 12
)

// MaxArgs is the size in bytes of a PCB's stored argument string,
// including the terminating NUL.
const MaxArgs = 128

// ElfMagic is the 4-byte magic every executable image must start with.
var ElfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// EntryOffset is the byte offset of the 32-bit little-endian entry
// point virtual address within an executable image; this coincides
// with the real ELF32 header's e_entry field offset.
const EntryOffset = 24
