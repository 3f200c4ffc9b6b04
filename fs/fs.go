// Package fs is the kernel's read-only filesystem collaborator: a
// flat directory of named files packed into a single disk image at
// build time by cmd/mkfs, addressed by dentry index or by name, and
// read a block at a time. There is no write path and no directory
// hierarchy; every name lives in one flat table, matching the
// original kernel's boot-block/dentry/inode/data-block image format
// (file_system.c in the source this kernel's design is drawn from).
//
// Superblock_t's fieldr/fieldw packed-integer accessor style is kept
// from the teacher's fs/super.go, applied here to the boot block's
// fixed layout instead of a Unix-style superblock.
package fs

import "encoding/binary"

import "defs"
import "ustr"

/// BlockSize is the size in bytes of one inode or data block.
const BlockSize = 4096

/// MaxNameLen is the maximum length of a dentry's file name.
const MaxNameLen = 32

/// MaxDentries bounds how many directory entries the boot block's
/// fixed-size layout can describe.
const MaxDentries = 63

/// Dentry_t names one file in the flat directory.
type Dentry_t struct {
	Name    ustr.Ustr
	Ftype   defs.Filetype_t
	InodeNo int
}

/// Inode_t describes one file's size and data block list.
type Inode_t struct {
	Size   int
	Blocks []int
}

/// Fs_t is an in-memory filesystem image: a boot block's worth of
/// dentries plus inodes and data blocks, all read-only after Load.
type Fs_t struct {
	dentries []Dentry_t
	inodes   []Inode_t
	data     [][]byte
}

/// Load parses a disk image produced by cmd/mkfs into an Fs_t.
//
// Image layout, all BlockSize-aligned:
//
//	block 0:            dentry count (4 bytes) || inode count (4) ||
//	                     data count (4) || dentries, each
//	                     MaxNameLen+1+4 bytes (name, ftype, inode#)
//	blocks 1..ninode:    one Inode_t per block: size (4 bytes)
//	                     followed by up to (BlockSize-4)/4 block
//	                     numbers
//	blocks after inodes: data blocks
func Load(img []byte) (*Fs_t, defs.Err_t) {
	if len(img) < BlockSize {
		return nil, -defs.EINVAL
	}
	boot := img[:BlockSize]
	ndent := int(binary.LittleEndian.Uint32(boot[0:4]))
	ninode := int(binary.LittleEndian.Uint32(boot[4:8]))
	ndata := int(binary.LittleEndian.Uint32(boot[8:12]))
	if ndent < 0 || ndent > MaxDentries {
		return nil, -defs.EINVAL
	}

	fsys := &Fs_t{}
	off := 12
	entsz := MaxNameLen + 1 + 4
	for i := 0; i < ndent; i++ {
		e := boot[off : off+entsz]
		off += entsz
		nlen := 0
		for nlen < MaxNameLen && e[nlen] != 0 {
			nlen++
		}
		d := Dentry_t{
			Name:    ustr.MkUstrSlice(e[:MaxNameLen]),
			Ftype:   defs.Filetype_t(e[MaxNameLen]),
			InodeNo: int(binary.LittleEndian.Uint32(e[MaxNameLen+1 : MaxNameLen+5])),
		}
		_ = nlen
		fsys.dentries = append(fsys.dentries, d)
	}

	need := BlockSize * (1 + ninode + ndata)
	if len(img) < need {
		return nil, -defs.EINVAL
	}

	for i := 0; i < ninode; i++ {
		blk := img[BlockSize*(1+i) : BlockSize*(2+i)]
		sz := int(binary.LittleEndian.Uint32(blk[0:4]))
		nblocks := (sz + BlockSize - 1) / BlockSize
		ino := Inode_t{Size: sz}
		for b := 0; b < nblocks; b++ {
			o := 4 + b*4
			ino.Blocks = append(ino.Blocks, int(binary.LittleEndian.Uint32(blk[o:o+4])))
		}
		fsys.inodes = append(fsys.inodes, ino)
	}

	database := BlockSize * (1 + ninode)
	for i := 0; i < ndata; i++ {
		fsys.data = append(fsys.data, img[database+i*BlockSize:database+(i+1)*BlockSize])
	}
	return fsys, 0
}

/// Read_dentry_by_name looks a file up by its exact name.
func (fsys *Fs_t) Read_dentry_by_name(name ustr.Ustr) (Dentry_t, defs.Err_t) {
	for _, d := range fsys.dentries {
		if d.Name.Eq(name) {
			return d, 0
		}
	}
	return Dentry_t{}, -defs.ENOENT
}

/// Read_dentry_by_index returns the i'th directory entry, used to
/// implement a readdir-style directory file.
func (fsys *Fs_t) Read_dentry_by_index(i int) (Dentry_t, defs.Err_t) {
	if i < 0 || i >= len(fsys.dentries) {
		return Dentry_t{}, -defs.ENOENT
	}
	return fsys.dentries[i], 0
}

/// File_size returns the size in bytes of the file with the given
/// inode number.
func (fsys *Fs_t) File_size(inode int) (int, defs.Err_t) {
	if inode < 0 || inode >= len(fsys.inodes) {
		return 0, -defs.ENOENT
	}
	return fsys.inodes[inode].Size, 0
}

/// Read_data copies up to len(dst) bytes starting at offset in the
/// file with the given inode number, returning the number of bytes
/// copied.
func (fsys *Fs_t) Read_data(inode, offset int, dst []byte) (int, defs.Err_t) {
	if inode < 0 || inode >= len(fsys.inodes) {
		return 0, -defs.ENOENT
	}
	ino := fsys.inodes[inode]
	if offset >= ino.Size {
		return 0, 0
	}
	n := len(dst)
	if offset+n > ino.Size {
		n = ino.Size - offset
	}
	got := 0
	for got < n {
		blkidx := (offset + got) / BlockSize
		blkoff := (offset + got) % BlockSize
		if blkidx >= len(ino.Blocks) {
			break
		}
		data := fsys.data[ino.Blocks[blkidx]]
		c := copy(dst[got:n], data[blkoff:])
		got += c
	}
	return got, 0
}
