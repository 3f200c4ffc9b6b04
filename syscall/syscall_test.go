package syscall

import "testing"

import "defs"
import "fs"
import "mem"
import "proc"
import "tty"
import "ustr"

func bootForTest(t *testing.T, files map[string][]byte) {
	t.Helper()
	mem.Phys_init(4096)
	mem.Vidmem_init()
	mem.Dmap_init()
	mem.Supers_init(4)
	tty.Init(4)
	proc.Fsys = mkTestFs(t, files)
}

func mkTestFs(t *testing.T, files map[string][]byte) *fs.Fs_t {
	t.Helper()
	const bs = fs.BlockSize
	type placed struct {
		name    string
		inode   int
		blocks  []int
		size    int
		ftype   defs.Filetype_t
	}
	var entries []placed
	var dataBlocks [][]byte
	inode := 0
	for name, data := range files {
		var blocks []int
		if len(data) == 0 {
			data = []byte{}
		}
		nblocks := (len(data) + bs - 1) / bs
		if nblocks == 0 {
			nblocks = 1
		}
		for i := 0; i < nblocks; i++ {
			blk := make([]byte, bs)
			src := data[i*bs:]
			if len(src) > bs {
				src = src[:bs]
			}
			copy(blk, src)
			blocks = append(blocks, len(dataBlocks))
			dataBlocks = append(dataBlocks, blk)
		}
		entries = append(entries, placed{name: name, inode: inode, blocks: blocks, size: len(data), ftype: defs.D_REGULAR})
		inode++
	}

	ninode := len(entries)
	img := make([]byte, bs*(1+ninode+len(dataBlocks)))
	boot := img[:bs]
	le := func(b []byte, v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	}
	le(boot[0:4], uint32(len(entries)))
	le(boot[4:8], uint32(ninode))
	le(boot[8:12], uint32(len(dataBlocks)))
	off := 12
	entsz := fs.MaxNameLen + 1 + 4
	for _, e := range entries {
		copy(boot[off:off+len(e.name)], e.name)
		boot[off+fs.MaxNameLen] = byte(e.ftype)
		le(boot[off+fs.MaxNameLen+1:off+fs.MaxNameLen+5], uint32(e.inode))
		off += entsz
	}

	for i, e := range entries {
		blk := img[bs*(1+i) : bs*(2+i)]
		le(blk[0:4], uint32(e.size))
		for j, b := range e.blocks {
			le(blk[4+j*4:8+j*4], uint32(b))
		}
	}

	database := bs * (1 + ninode)
	for i, b := range dataBlocks {
		copy(img[database+i*bs:database+(i+1)*bs], b)
	}

	fsys, err := fs.Load(img)
	if err != 0 {
		t.Fatalf("Load failed: %v", err)
	}
	return fsys
}

func mkElfImage() []byte {
	img := make([]byte, 32)
	copy(img[:4], defs.ElfMagic[:])
	entry := uint32(0x08048000 + 0x1000)
	img[24] = byte(entry)
	img[25] = byte(entry >> 8)
	img[26] = byte(entry >> 16)
	img[27] = byte(entry >> 24)
	return img
}

func TestOpenReadCloseRegularFile(t *testing.T) {
	bootForTest(t, map[string][]byte{
		"init": mkElfImage(),
		"hi":   []byte("hello, kernel"),
	})

	pid, err := proc.Table.Execute(ustr.Ustr("init"), ustr.MkUstr(), 0, defs.NoPid)
	if err != 0 {
		t.Fatalf("Execute failed: %v", err)
	}
	p := proc.Table.Get(pid)

	nameBuf := make([]byte, 3)
	copy(nameBuf, "hi\x00")
	nameva := uint32(0x08048000 + 0x2000)
	if err := p.As.K2user(nameBuf, nameva); err != 0 {
		t.Fatalf("K2user failed: %v", err)
	}

	fdn := Dispatch(p, defs.SYS_OPEN, nameva, 0, 0)
	if fdn < 2 {
		t.Fatalf("open returned %v, want fd >= 2", fdn)
	}

	bufva := uint32(0x08048000 + 0x3000)
	n := Dispatch(p, defs.SYS_READ, uint32(fdn), bufva, 32)
	if n != int32(len("hello, kernel")) {
		t.Fatalf("read returned %v, want %v", n, len("hello, kernel"))
	}
	got := make([]byte, n)
	if err := p.As.User2k(got, bufva); err != 0 {
		t.Fatalf("User2k failed: %v", err)
	}
	if string(got) != "hello, kernel" {
		t.Fatalf("read data = %q", got)
	}

	if r := Dispatch(p, defs.SYS_CLOSE, uint32(fdn), 0, 0); r != 0 {
		t.Fatalf("close failed: %v", r)
	}
	if r := Dispatch(p, defs.SYS_READ, uint32(fdn), bufva, 32); r != -1 {
		t.Fatalf("read after close = %v, want -1", r)
	}
}

func TestCloseRefusesStdinStdout(t *testing.T) {
	bootForTest(t, map[string][]byte{"init": mkElfImage()})
	pid, err := proc.Table.Execute(ustr.Ustr("init"), ustr.MkUstr(), 0, defs.NoPid)
	if err != 0 {
		t.Fatalf("Execute failed: %v", err)
	}
	p := proc.Table.Get(pid)
	if r := Dispatch(p, defs.SYS_CLOSE, 0, 0, 0); r != -1 {
		t.Fatalf("close(0) = %v, want -1", r)
	}
	if r := Dispatch(p, defs.SYS_CLOSE, 1, 0, 0); r != -1 {
		t.Fatalf("close(1) = %v, want -1", r)
	}
}

func TestWriteGoesToStdoutScrollback(t *testing.T) {
	bootForTest(t, map[string][]byte{"init": mkElfImage()})
	pid, err := proc.Table.Execute(ustr.Ustr("init"), ustr.MkUstr(), 0, defs.NoPid)
	if err != 0 {
		t.Fatalf("Execute failed: %v", err)
	}
	p := proc.Table.Get(pid)

	msg := []byte("booting\n")
	msgva := uint32(0x08048000 + 0x4000)
	if err := p.As.K2user(msg, msgva); err != 0 {
		t.Fatalf("K2user failed: %v", err)
	}
	n := Dispatch(p, defs.SYS_WRITE, 1, msgva, uint32(len(msg)))
	if n != int32(len(msg)) {
		t.Fatalf("write returned %v, want %v", n, len(msg))
	}
	sb := tty.Ttys[0].Scrollback()
	if len(sb) == 0 || string(sb[len(sb)-1]) != string(msg) {
		t.Fatalf("scrollback tail = %q, want %q", sb[len(sb)-1], msg)
	}
}

func TestGetargsAndVidmap(t *testing.T) {
	bootForTest(t, map[string][]byte{"init": mkElfImage()})
	pid, err := proc.Table.Execute(ustr.Ustr("init"), ustr.Ustr("42"), 0, defs.NoPid)
	if err != 0 {
		t.Fatalf("Execute failed: %v", err)
	}
	p := proc.Table.Get(pid)

	argbufva := uint32(0x08048000 + 0x5000)
	if r := Dispatch(p, defs.SYS_GETARGS, argbufva, 10, 0); r != 0 {
		t.Fatalf("getargs = %v", r)
	}
	got := make([]byte, 3)
	if err := p.As.User2k(got, argbufva); err != 0 {
		t.Fatalf("User2k failed: %v", err)
	}
	if string(got) != "42\x00" {
		t.Fatalf("args = %q, want %q", got, "42\x00")
	}

	outva := uint32(0x08048000 + 0x6000)
	if r := Dispatch(p, defs.SYS_VIDMAP, outva, 0, 0); r != 0 {
		t.Fatalf("vidmap = %v", r)
	}
	uva, err := p.As.Userreadn(outva, 4)
	if err != 0 || uva != int(mem.VIDMAP_UVA) {
		t.Fatalf("vidmap out-param = %#x,%v, want %#x", uva, err, mem.VIDMAP_UVA)
	}
}
