package devfs

import "testing"

import "defs"
import "fs"
import "vm"

func mkfsImage(t *testing.T, name string, data []byte) *fs.Fs_t {
	t.Helper()
	const bs = fs.BlockSize
	nblocks := (len(data) + bs - 1) / bs
	if nblocks == 0 {
		nblocks = 1
	}
	img := make([]byte, bs*(1+1+nblocks))
	boot := img[:bs]
	le := func(b []byte, v uint32) {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
	}
	le(boot[0:4], 1)
	le(boot[4:8], 1)
	le(boot[8:12], uint32(nblocks))
	copy(boot[12:12+len(name)], name)
	boot[12+fs.MaxNameLen] = byte(defs.D_REGULAR)
	le(boot[12+fs.MaxNameLen+1:12+fs.MaxNameLen+5], 0)

	inodeBlk := img[bs : 2*bs]
	le(inodeBlk[0:4], uint32(len(data)))
	for i := 0; i < nblocks; i++ {
		le(inodeBlk[4+i*4:8+i*4], uint32(i))
	}

	for i := 0; i < nblocks; i++ {
		off := bs * (2 + i)
		end := off + bs
		src := data[i*bs:]
		if len(src) > bs {
			src = src[:bs]
		}
		copy(img[off:end], src)
	}

	fsys, err := fs.Load(img)
	if err != 0 {
		t.Fatalf("Load failed: %v", err)
	}
	return fsys
}

func TestRegfileReadAdvancesPosition(t *testing.T) {
	fsys := mkfsImage(t, "greeting", []byte("hello world"))
	rf := OpenRegfile(fsys, 0)

	var fb vm.Fakeubuf_t
	buf := make([]byte, 5)
	fb.Fake_init(buf)
	n, err := rf.Read(&fb)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("first read = %q,%v,%v", buf, n, err)
	}

	buf2 := make([]byte, 20)
	var fb2 vm.Fakeubuf_t
	fb2.Fake_init(buf2)
	n, err = rf.Read(&fb2)
	if err != 0 || string(buf2[:n]) != " world" {
		t.Fatalf("second read = %q,%v,%v", buf2[:n], n, err)
	}
}
