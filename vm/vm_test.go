package vm

import "testing"

import "defs"
import "mem"
import "ustr"

func setupAs(t *testing.T, image []byte) *Vm_t {
	t.Helper()
	mem.Phys_init(64)
	mem.Supers_init(2)
	as, err := Init_proc_vm(image)
	if err != 0 {
		t.Fatalf("Init_proc_vm: %v", err)
	}
	return as
}

func TestUserreadnWritenRoundTrip(t *testing.T) {
	as := setupAs(t, make([]byte, 64))
	if err := as.Userwriten(USER_PAGE_VA+8, 4, 0xdeadbeef&0x7fffffff); err != 0 {
		t.Fatalf("Userwriten: %v", err)
	}
	got, err := as.Userreadn(USER_PAGE_VA+8, 4)
	if err != 0 {
		t.Fatalf("Userreadn: %v", err)
	}
	if got != 0xdeadbeef&0x7fffffff {
		t.Fatalf("got %#x, want %#x", got, 0xdeadbeef&0x7fffffff)
	}
}

func TestUserstrStopsAtNul(t *testing.T) {
	image := make([]byte, 64)
	copy(image[16:], []byte("hello\x00garbage"))
	as := setupAs(t, image)

	s, err := as.Userstr(USER_PAGE_VA+16, 64)
	if err != 0 {
		t.Fatalf("Userstr: %v", err)
	}
	if !s.Eq(ustr.Ustr("hello")) {
		t.Fatalf("Userstr = %q, want %q", s, "hello")
	}
}

func TestUserstrRejectsMissingNul(t *testing.T) {
	image := make([]byte, 64)
	for i := range image[:8] {
		image[i] = 'x'
	}
	as := setupAs(t, image)

	if _, err := as.Userstr(USER_PAGE_VA, 8); err != -defs.ENAMETOOLONG {
		t.Fatalf("Userstr = %v, want ENAMETOOLONG", err)
	}
}

func TestTranslateRejectsOutOfRangeAddresses(t *testing.T) {
	as := setupAs(t, make([]byte, 64))

	if _, err := as.Userdmap8r(USER_PAGE_VA-4, 4); err != -defs.EFAULT {
		t.Fatalf("Userdmap8r below region = %v, want EFAULT", err)
	}
	if _, err := as.Userdmap8r(USER_PAGE_VA+uint32(mem.PDSIZE)-2, 4); err != -defs.EFAULT {
		t.Fatalf("Userdmap8r spanning past region = %v, want EFAULT", err)
	}
}

func TestK2userUser2kRoundTrip(t *testing.T) {
	as := setupAs(t, make([]byte, 64))

	src := []byte("round-trip-me")
	if err := as.K2user(src, USER_PAGE_VA+32); err != 0 {
		t.Fatalf("K2user: %v", err)
	}
	dst := make([]byte, len(src))
	if err := as.User2k(dst, USER_PAGE_VA+32); err != 0 {
		t.Fatalf("User2k: %v", err)
	}
	if string(dst) != string(src) {
		t.Fatalf("User2k = %q, want %q", dst, src)
	}
}

func TestInitProcVmRejectsOversizedImage(t *testing.T) {
	mem.Phys_init(64)
	mem.Supers_init(2)
	_, err := Init_proc_vm(make([]byte, mem.PDSIZE+1))
	if err != -defs.ENOMEM {
		t.Fatalf("Init_proc_vm with oversized image = %v, want ENOMEM", err)
	}
}

func TestInitProcVmExhaustsSuperpages(t *testing.T) {
	mem.Phys_init(64)
	mem.Supers_init(1)
	if _, err := Init_proc_vm(make([]byte, 16)); err != 0 {
		t.Fatalf("first Init_proc_vm: %v", err)
	}
	if _, err := Init_proc_vm(make([]byte, 16)); err != -defs.ENOMEM {
		t.Fatalf("second Init_proc_vm = %v, want ENOMEM once superpages are exhausted", err)
	}
}
