// Command chentry modifies the entry address of a 32-bit ELF binary,
// the image format defs.ElfMagic/defs.EntryOffset expect every
// executable loaded by proc.Execute to match. Adapted from the
// teacher's kernel/chentry.go (a 64-bit x86 tool used to patch the
// kernel image's own entry point at build time) down to 32-bit: this
// kernel's protected-mode user programs are ELFCLASS32/EM_386, not
// the teacher's own ELFCLASS64/EM_X86_64 kernel image.
package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"
)

// usage prints a small help message and terminates the program.
func usage(me string) {
	fmt.Printf("%s <filename> <addr>\n\nChange the ELF entry point of <filename> to <addr>\n", me)
	os.Exit(1)
}

// chkELF validates the ELF file header to ensure we are modifying the correct
// type of binary.  It exits the program if any of the checks fail.
func chkELF(eh *elf.FileHeader) {
	// The magic bytes are already checked by elf.NewFile, which rejects
	// a file that does not start with them.
	if eh.Class != elf.ELFCLASS32 {
		log.Fatal("not 32 bit?")
	}
	if eh.Data != elf.ELFDATA2LSB {
		log.Fatal("not little-endian?")
	}
	if eh.Type != elf.ET_EXEC {
		log.Fatal("not an executable elf")
	}
	if eh.Machine != elf.EM_386 {
		log.Fatal("not a 32 bit x86 elf")
	}
}

// main drives the entry point update.  It expects a filename and an address
// value on the command line and rewrites the ELF header accordingly.
func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	fn := os.Args[1]
	addr, err := parseAddr(os.Args[2])
	if err != nil {
		log.Fatal(err)
	}
	if addr>>32 != 0 {
		log.Fatal("entry does not fit in 32 bits")
	}
	f, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatal(err)
	}
	chkELF(&ef.FileHeader)

	fmt.Printf("using address 0x%x\n", addr)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(addr))
	if _, err := f.WriteAt(buf[:], 24); err != nil {
		log.Fatal(err)
	}
}

// parseAddr converts the supplied string into a uint64 address.  The syntax
// matches that of C's strtoul with a base of 0, allowing both decimal and
// hexadecimal numbers.
func parseAddr(s string) (uint64, error) {
	a, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return a, nil
}
