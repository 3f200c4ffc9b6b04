package heap

import "testing"

import "defs"

func TestAllocFree(t *testing.T) {
	h := Mkheap(1024)
	a, err := h.Alloc(100)
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if a != 0 {
		t.Fatalf("expected first alloc at 0, got %v", a)
	}
	b, err := h.Alloc(50)
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if b != 100 {
		t.Fatalf("expected second alloc at 100, got %v", b)
	}
	if got := h.Avail(); got != 1024-150 {
		t.Fatalf("avail = %v, want %v", got, 1024-150)
	}
	h.Free(a, 100)
	h.Free(b, 50)
	if got := h.Avail(); got != 1024 {
		t.Fatalf("avail after free = %v, want 1024", got)
	}
	if len(h.free) != 1 {
		t.Fatalf("expected coalesced single free block, got %v blocks", len(h.free))
	}
}

func TestAllocExhaustion(t *testing.T) {
	h := Mkheap(16)
	if _, err := h.Alloc(16); err != 0 {
		t.Fatalf("alloc of entire heap failed: %v", err)
	}
	if _, err := h.Alloc(1); err != -defs.ENOHEAP {
		t.Fatalf("expected ENOHEAP, got %v", err)
	}
}

func TestAllocPrefersSmallBlocksOverThreshold(t *testing.T) {
	h := Mkheap(8000)
	a, _ := h.Alloc(3000)
	_, _ = h.Alloc(2000)
	c, _ := h.Alloc(3000)

	// a big (>threshold) free block at the low end of the arena...
	h.Free(a, 3000)
	// ...and a small one at the high end, so address order alone
	// would pick the big block first.
	h.Free(c+2500, 500)

	got, err := h.Alloc(100)
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if got != c+2500 {
		t.Fatalf("addr = %v, want the small high-address block at %v, not the big low-address one at %v", got, c+2500, a)
	}
}

func TestAllocAlignedCarvesAroundBoundary(t *testing.T) {
	h := Mkheap(256)
	if _, err := h.Alloc(10); err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	addr, err := h.AllocAligned(16, 32)
	if err != 0 {
		t.Fatalf("AllocAligned failed: %v", err)
	}
	if addr%32 != 0 {
		t.Fatalf("addr = %v, not 32-byte aligned", addr)
	}
	if addr < 10 {
		t.Fatalf("addr = %v, expected to land after the first allocation", addr)
	}
}

func TestAllocAlignedExhaustion(t *testing.T) {
	h := Mkheap(40)
	if _, err := h.Alloc(1); err != 0 {
		t.Fatalf("Alloc(1) failed: %v", err)
	}
	if _, err := h.AllocAligned(16, 32); err != -defs.ENOHEAP {
		t.Fatalf("expected ENOHEAP for an alignment the arena can't satisfy, got %v", err)
	}
}

func TestFirstFit(t *testing.T) {
	h := Mkheap(300)
	a, _ := h.Alloc(100)
	b, _ := h.Alloc(100)
	_, _ = h.Alloc(100)
	h.Free(a, 100)
	h.Free(b, 100)
	c, err := h.Alloc(100)
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if c != a {
		t.Fatalf("expected first-fit to reuse addr %v, got %v", a, c)
	}
}
