package mem

import "fmt"

// 32-bit virtual address layout. The kernel lives in the top gigabyte,
// mapped with 4 MiB superpages; everything below KERNBASE is available
// to whichever process is currently scheduled. The VGA text buffer is
// the one physical range every address space maps identically, via a
// single shared page table rather than a superpage, since it is only
// 4000 bytes within a 4 KiB frame.

/// KERNBASE is the virtual address at which the kernel's 4 MiB
/// superpage mappings begin.
const KERNBASE uint32 = 0xc0000000

/// KERNSUPERPAGES is the number of 4 MiB superpages the kernel maps
/// at boot, covering the simulated physical arena.
const KERNSUPERPAGES = 8

/// VIDMAP_UVA is the fixed user-space virtual address the vidmap
/// syscall maps the VGA buffer to, one page table slot below KERNBASE.
const VIDMAP_UVA uint32 = KERNBASE - uint32(PGSIZE)

/// Vid_pa is the physical (arena) address of the simulated VGA text
/// buffer, set by Vidmem_init.
var Vid_pa Pa_t

func pdeIndex(va uint32) int {
	return int(va >> PDSHIFT)
}

func pteIndex(va uint32) int {
	return int((va >> PGSHIFT) & 0x3ff)
}

/// Kpmap is the kernel's page directory, shared by every address
/// space: each process's own Pmap_t is a private copy of the low
/// half plus these same kernel entries in the high half.
var Kpmap *Pmap_t

// vidptbl is the single page table backing the VGA mapping; every
// address space's PDE for VIDMAP_UVA's slot points at this same table,
// in the kernel half where mappings are shared and in any user
// process that has called vidmap, in its half.
var vidptbl *Pmap_t
var vidptbl_pa Pa_t

/// Dmap_init builds the kernel's superpage mappings over the
/// simulated physical arena and prepares the shared VGA page table.
/// It must run after Phys_init and Vidmem_init.
func Dmap_init() {
	pmap, _, ok := Physmem.Pmap_new()
	if !ok {
		panic("oom during dmap init")
	}
	Kpmap = pmap

	for i := 0; i < KERNSUPERPAGES; i++ {
		va := KERNBASE + uint32(i)*uint32(PDSIZE)
		pa := Pa_t(i) << PDSHIFT
		Kpmap[pdeIndex(va)] = pa | PTE_P | PTE_W | PTE_PS
	}

	pt, pa, ok := Physmem.Pmap_new()
	if !ok {
		panic("oom during dmap init")
	}
	vidptbl = pt
	vidptbl_pa = pa
	vidptbl[pteIndex(VIDMAP_UVA)] = Vid_pa | PTE_P | PTE_W | PTE_U | PTE_PCD
	Kpmap[pdeIndex(VIDMAP_UVA)] = vidptbl_pa | PTE_P | PTE_W

	fmt.Printf("mem: kernel mapped at 0x%x, video page table installed\n", KERNBASE)
}

/// Vidmem_init reserves the frame backing the simulated VGA buffer.
func Vidmem_init() {
	_, pa, ok := Physmem.Refpg_new()
	if !ok {
		panic("oom reserving video memory")
	}
	Vid_pa = pa
}

/// Map_video_user installs the shared video page table into a
/// process's own page directory, implementing the vidmap syscall.
func Map_video_user(upmap *Pmap_t) {
	upmap[pdeIndex(VIDMAP_UVA)] = vidptbl_pa | PTE_P | PTE_W | PTE_U
}

/// RemapVideoPrivate installs a private, single-entry page table for
/// VIDMAP_UVA in upmap, pointing it at pa instead of the shared VGA
/// frame vidptbl maps. Used by tty_switch: a process whose tty has
/// just been pushed to the background keeps its vid_mem window, but
/// pointed at that tty's own back-buffer frame rather than the
/// physical screen some other tty now owns, so the shared mapping
/// every other process still relies on is left untouched.
func RemapVideoPrivate(upmap *Pmap_t, pa Pa_t) {
	pt, pt_pa, ok := Physmem.Pmap_new()
	if !ok {
		panic("oom remapping video memory")
	}
	pt[pteIndex(VIDMAP_UVA)] = pa | PTE_P | PTE_W | PTE_U | PTE_PCD
	upmap[pdeIndex(VIDMAP_UVA)] = pt_pa | PTE_P | PTE_W | PTE_U
}

/// DisableFramebuffer clears the shared VGA page table's present bit,
/// so any process still holding a vidmap'd pointer faults instead of
/// drawing to a screen the kernel has already given up on. Used when
/// a kernel-mode exception is about to halt the machine, mirroring
/// the original kernel's diagnostic-screen-then-halt fault path.
func DisableFramebuffer() {
	vidptbl[pteIndex(VIDMAP_UVA)] &^= PTE_P
}
