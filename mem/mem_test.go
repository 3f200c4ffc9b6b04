package mem

import "testing"

func TestRefpgNewAndFree(t *testing.T) {
	Phys_init(64)
	before := Physmem.Pgcount()

	_, pa, ok := Physmem.Refpg_new_nozero()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	Physmem.Refup(pa)
	if got := Physmem.Pgcount(); got != before-1 {
		t.Fatalf("pgcount = %v, want %v", got, before-1)
	}
	if !Physmem.Refdown(pa) {
		t.Fatal("expected Refdown to free the only reference")
	}
	if got := Physmem.Pgcount(); got != before {
		t.Fatalf("pgcount after free = %v, want %v", got, before)
	}
}

func TestRefcounting(t *testing.T) {
	Phys_init(8)
	_, pa, ok := Physmem.Refpg_new_nozero()
	if !ok {
		t.Fatal("alloc failed")
	}
	Physmem.Refup(pa)
	Physmem.Refup(pa)
	if Physmem.Refcnt(pa) != 2 {
		t.Fatalf("refcnt = %v, want 2", Physmem.Refcnt(pa))
	}
	if Physmem.Refdown(pa) {
		t.Fatal("expected page to still be referenced")
	}
	if !Physmem.Refdown(pa) {
		t.Fatal("expected final Refdown to free the page")
	}
}

func TestOOM(t *testing.T) {
	Phys_init(1)
	_, _, ok := Physmem.Refpg_new_nozero()
	if !ok {
		t.Fatal("first alloc should succeed")
	}
	if _, _, ok := Physmem.Refpg_new_nozero(); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestSuperpages(t *testing.T) {
	Supers_init(2)
	a, ok := Physmem.Refsuperpage_new()
	if !ok {
		t.Fatal("expected superpage alloc to succeed")
	}
	b, ok := Physmem.Refsuperpage_new()
	if !ok {
		t.Fatal("expected second superpage alloc to succeed")
	}
	if a == b {
		t.Fatal("expected distinct superpages")
	}
	if _, ok := Physmem.Refsuperpage_new(); ok {
		t.Fatal("expected superpage pool to be exhausted")
	}
	Physmem.Refsuperpage_free(a)
	if _, ok := Physmem.Refsuperpage_new(); !ok {
		t.Fatal("expected freed superpage to be reusable")
	}
}
