// Package heap implements the kernel's own dynamic memory: a
// first-fit, coalescing free-list allocator over a fixed-size arena,
// used for the kernel's own bookkeeping structures (PCB argument
// buffers) that don't warrant a whole page. Grounded on the original
// kernel's kheap.c, which keeps the same first-fit-with-coalescing
// design over a block header list; this package keeps the block list
// out-of-band (a slice of {addr,size} pairs) rather than as in-band
// headers, since nothing here needs the allocator to run before Go's
// own memory management is available.
//
// kheap.c's kmalloc searches a free list ordered so that blocks at or
// under BIG_BLOCK_THRESHOLD are found before larger ones, leaving big
// blocks intact for allocations that actually need them; Alloc
// approximates that by searching small blocks first rather than
// porting the original's separate address-ordered/size-ordered linked
// lists. Free still coalesces by address, since nothing about the
// threshold policy affects when two free neighbors should merge.
package heap

import "sort"
import "sync"

import "defs"

type block_t struct {
	addr int
	size int
}

/// BigBlockThreshold mirrors kheap.c's BIG_BLOCK_THRESHOLD: Alloc
/// searches blocks at or under this size before ones over it.
const BigBlockThreshold = 2000

/// Heap_t is a first-fit allocator over a byte arena.
type Heap_t struct {
	arena []byte
	free  []block_t
	sync.Mutex
}

/// Mkheap allocates an arena of the given size and marks it entirely
/// free.
func Mkheap(size int) *Heap_t {
	h := &Heap_t{arena: make([]byte, size)}
	h.free = []block_t{{addr: 0, size: size}}
	return h
}

/// Alloc reserves n bytes and returns their offset into the arena. The
/// free list is searched small-blocks-first (see BigBlockThreshold):
/// a pass over blocks sized at or under the threshold runs before a
/// pass over the larger ones, so small requests don't fragment a big
/// block while a same-sized small one sits free elsewhere.
func (h *Heap_t) Alloc(n int) (int, defs.Err_t) {
	if n <= 0 {
		panic("bad alloc size")
	}
	h.Lock()
	defer h.Unlock()
	idx := h.findFit(n)
	if idx < 0 {
		return 0, -defs.ENOHEAP
	}
	b := &h.free[idx]
	addr := b.addr
	if b.size == n {
		h.free = append(h.free[:idx], h.free[idx+1:]...)
	} else {
		b.addr += n
		b.size -= n
	}
	return addr, 0
}

func (h *Heap_t) findFit(n int) int {
	for _, small := range []bool{true, false} {
		for i := range h.free {
			b := &h.free[i]
			if (b.size <= BigBlockThreshold) != small {
				continue
			}
			if b.size >= n {
				return i
			}
		}
	}
	return -1
}

/// AllocAligned reserves n bytes starting at an address that is a
/// multiple of alignment, carving up to two smaller blocks off
/// whichever free block can fit the request: a head gap below the
/// aligned address (dropped if the block already starts aligned) and
/// a tail remainder above the allocation. Grounded on the original
/// kernel's kmalloc_aligned, which performs the same up-to-two-way
/// split over its free list.
func (h *Heap_t) AllocAligned(n, alignment int) (int, defs.Err_t) {
	if n <= 0 || alignment <= 0 {
		panic("bad alloc size")
	}
	h.Lock()
	defer h.Unlock()
	for i := range h.free {
		b := h.free[i]
		start := roundup(b.addr, alignment)
		if start+n > b.addr+b.size {
			continue
		}
		var repl []block_t
		if headGap := start - b.addr; headGap > 0 {
			repl = append(repl, block_t{addr: b.addr, size: headGap})
		}
		if tailGap := (b.addr + b.size) - (start + n); tailGap > 0 {
			repl = append(repl, block_t{addr: start + n, size: tailGap})
		}
		rest := append([]block_t{}, h.free[i+1:]...)
		h.free = append(append(h.free[:i], repl...), rest...)
		return start, 0
	}
	return 0, -defs.ENOHEAP
}

func roundup(v, n int) int {
	return (v + n - 1) / n * n
}

/// Free returns a previously allocated [addr, addr+n) range to the
/// free list, coalescing it with any adjacent free blocks.
func (h *Heap_t) Free(addr, n int) {
	h.Lock()
	defer h.Unlock()
	h.free = append(h.free, block_t{addr: addr, size: n})
	sort.Slice(h.free, func(i, j int) bool { return h.free[i].addr < h.free[j].addr })
	merged := h.free[:1]
	for _, b := range h.free[1:] {
		last := &merged[len(merged)-1]
		if last.addr+last.size == b.addr {
			last.size += b.size
		} else {
			merged = append(merged, b)
		}
	}
	h.free = merged
}

/// Bytes returns the byte slice backing [addr, addr+n).
func (h *Heap_t) Bytes(addr, n int) []byte {
	return h.arena[addr : addr+n]
}

/// Avail reports the total number of free bytes remaining.
func (h *Heap_t) Avail() int {
	h.Lock()
	defer h.Unlock()
	n := 0
	for _, b := range h.free {
		n += b.size
	}
	return n
}
