// Package mem implements the physical frame allocator and the 32-bit
// two-level page table layout: 4 MiB superpage entries for ordinary
// kernel and process memory, and 4 KiB page table entries for the
// single region every address space maps identically, the VGA text
// buffer.
//
// The teacher's mem package allocates frames from the real machine's
// physical memory, discovered at boot via a patched runtime's
// Get_phys/Cpuid/Vtop calls and organized as a 4-level x86-64 page
// table with a 64-bit direct map. This kernel targets 32-bit
// protected mode on the stock Go toolchain, which has no bare-metal
// entry point, so physical memory here is a fixed-size Go byte arena
// allocated at Phys_init time; "physical addresses" are offsets into
// that arena, and Dmap is a plain slice over it rather than a
// recursive page-table walk. The refcounted free-list allocator
// itself, and the Page_i interface it implements, are kept from the
// teacher essentially unchanged.
package mem

import "fmt"
import "sync"
import "sync/atomic"
import "unsafe"
import "util"

/// PGSHIFT is the base-2 exponent for the small page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single 4 KiB page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a 4 KiB page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// PDSHIFT is the base-2 exponent for the 4 MiB superpage size.
const PDSHIFT uint = 22

/// PDSIZE is the size of a 4 MiB superpage in bytes.
const PDSIZE int = 1 << PDSHIFT

/// PTE_P marks a page as present.
const PTE_P Pa_t = 1 << 0

/// PTE_W marks a page writable.
const PTE_W Pa_t = 1 << 1

/// PTE_U marks a page user-accessible.
const PTE_U Pa_t = 1 << 2

/// PTE_PCD disables caching for the page, used for the VGA buffer.
const PTE_PCD Pa_t = 1 << 4

/// PTE_PS marks a page directory entry as a 4 MiB superpage.
const PTE_PS Pa_t = 1 << 7

/// PTE_ADDR extracts the frame address bits of a PTE or superpage PDE.
const PTE_ADDR Pa_t = PGMASK

/// Pa_t represents an offset into the simulated physical arena.
type Pa_t uint32

/// Bytepg_t is a byte addressed 4 KiB page.
type Bytepg_t [PGSIZE]uint8

/// Pg_t is a generic 4 KiB page of ints, sized to match Bytepg_t.
type Pg_t [PGSIZE / 8]int64

/// Pmap_t is a 1024-entry, 4-byte-per-entry page table or page
/// directory, matching the 32-bit hardware layout.
type Pmap_t [1024]Pa_t

/// Unpin_i allows unpinning of physical pages.
type Unpin_i interface {
	Unpin(Pa_t)
}

/// Page_i abstracts physical page allocation.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Pg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

/// Pg2bytes converts a page of ints to a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

/// Bytepg2pg converts a byte page back to a Pg_t.
func Bytepg2pg(pg *Bytepg_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(pg))
}

func pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

func _pg2pgn(p_pg Pa_t) uint32 {
	return uint32(p_pg) >> PGSHIFT
}

/// Physpg_t describes a single physical frame's bookkeeping.
type Physpg_t struct {
	Refcnt int32
	// index into Pgs of the next free frame, or ^uint32(0)
	nexti uint32
}

/// Physmem_t manages the simulated physical arena, one 4 KiB frame at
/// a time. A single free list and a single mutex suffice since this
/// kernel runs on one core.
type Physmem_t struct {
	arena   []byte
	Pgs     []Physpg_t
	startn  uint32
	freei   uint32
	freelen int32
	sync.Mutex
}

/// Refaddr returns the refcount pointer and index for the given frame.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) (*int32, uint32) {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Refcnt, idx
}

/// Refcnt returns the current reference count of a frame.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	ref, _ := phys.Refaddr(p_pg)
	return int(atomic.LoadInt32(ref))
}

/// Refup increments the reference count of a frame.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	ref, _ := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, 1)
	if c <= 0 {
		panic("wut")
	}
}

func (phys *Physmem_t) _refdec(p_pg Pa_t) (bool, uint32) {
	ref, idx := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, -1)
	if c < 0 {
		panic("wut")
	}
	return c == 0, idx
}

/// Refdown decrements the reference count of a frame.
/// It returns true when the frame is freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	return phys._phys_put(p_pg)
}

/// Zeropg is a global zero-filled page used for allocations.
var Zeropg *Pg_t

/// Refpg_new allocates a zeroed frame and returns its mapping and
/// address. The returned frame's refcount is not incremented.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	pg, p_pg, ok := phys._refpg_new()
	if !ok {
		return nil, 0, false
	}
	*pg = *Zeropg
	return pg, p_pg, true
}

/// Refpg_new_nozero allocates an uninitialised frame.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	return phys._refpg_new()
}

func (phys *Physmem_t) _refpg_new() (*Pg_t, Pa_t, bool) {
	phys.Lock()
	var p_pg Pa_t
	var ok bool
	ff := phys.freei
	if ff != ^uint32(0) {
		p_pg = Pa_t(ff+phys.startn) << PGSHIFT
		phys.freei = phys.Pgs[ff].nexti
		ok = true
		if phys.Pgs[ff].Refcnt < 0 {
			panic("negative ref count")
		}
		phys.freelen--
		if phys.freelen < 0 {
			panic("no")
		}
	}
	phys.Unlock()
	if !ok {
		return nil, 0, false
	}
	return phys.Dmap(p_pg), p_pg, true
}

func (phys *Physmem_t) _phys_put(p_pg Pa_t) bool {
	add, idx := phys._refdec(p_pg)
	if !add {
		return false
	}
	phys.Lock()
	phys.Pgs[idx].nexti = phys.freei
	phys.freei = idx
	phys.freelen++
	phys.Unlock()
	return true
}

/// Pmap_new allocates a new page table or page directory, with its
/// reference count set to one so a matching Refdown frees it.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	a, b, ok := phys.Refpg_new()
	if !ok {
		return nil, 0, false
	}
	phys.Refup(b)
	return pg2pmap(a), b, ok
}

/// Dmap returns the Go-visible page backing the given arena offset.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	off := util.Rounddown(int(p), PGSIZE)
	if off < 0 || off+PGSIZE > len(phys.arena) {
		panic("physical address outside arena")
	}
	return (*Pg_t)(unsafe.Pointer(&phys.arena[off]))
}

/// Dmap8 returns a byte slice mapped to the given physical address.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

/// Pgcount reports the number of free frames remaining.
func (phys *Physmem_t) Pgcount() int {
	phys.Lock()
	r := int(phys.freelen)
	phys.Unlock()
	return r
}

/// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

/// Phys_init reserves an arena of npages 4 KiB frames and initializes
/// the global physical memory allocator over it.
func Phys_init(npages int) *Physmem_t {
	phys := Physmem
	phys.arena = make([]byte, npages*PGSIZE)
	phys.Pgs = make([]Physpg_t, npages)
	phys.startn = 0
	phys.freei = 0
	phys.freelen = int32(npages)
	for i := range phys.Pgs {
		phys.Pgs[i].Refcnt = 0
		if i == npages-1 {
			phys.Pgs[i].nexti = ^uint32(0)
		} else {
			phys.Pgs[i].nexti = uint32(i + 1)
		}
	}
	Zeropg = new(Pg_t)
	fmt.Printf("mem: reserved %v frames (%vKB)\n", npages, npages*PGSIZE/1024)
	return phys
}

// superpages backs each process's single 4 MiB program region. Carved
// out of its own arena, separate from the 4 KiB frame free list above,
// since the small-frame allocator has no notion of contiguous runs and
// a process's program region must be one contiguous 4 MiB chunk.
type superpages_t struct {
	arena []byte
	free  []bool
	sync.Mutex
}

var supers superpages_t

/// Supers_init reserves n superpage-sized (4 MiB) chunks for process
/// program regions.
func Supers_init(n int) {
	supers.arena = make([]byte, n*PDSIZE)
	supers.free = make([]bool, n)
	for i := range supers.free {
		supers.free[i] = true
	}
}

/// Refsuperpage_new allocates one zeroed 4 MiB chunk and returns its
/// arena offset.
func (phys *Physmem_t) Refsuperpage_new() (Pa_t, bool) {
	supers.Lock()
	defer supers.Unlock()
	for i, free := range supers.free {
		if free {
			supers.free[i] = false
			off := i * PDSIZE
			for j := range supers.arena[off : off+PDSIZE] {
				supers.arena[off+j] = 0
			}
			return Pa_t(off), true
		}
	}
	return 0, false
}

/// Superpage_bytes returns the byte slice backing a superpage
/// previously allocated by Refsuperpage_new.
func (phys *Physmem_t) Superpage_bytes(pa Pa_t) []byte {
	off := int(pa)
	return supers.arena[off : off+PDSIZE]
}

/// Refsuperpage_free returns a 4 MiB chunk to the free pool.
func (phys *Physmem_t) Refsuperpage_free(pa Pa_t) {
	supers.Lock()
	defer supers.Unlock()
	supers.free[int(pa)/PDSIZE] = true
}
